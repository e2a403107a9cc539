package extract

import (
	"fmt"

	"consult-scribe-service/internal/record"
)

const systemPrompt = "You are a medical assistant that structures clinical records. " +
	"You always answer with a single valid JSON object, without markdown or any additional text."

// userPromptTemplate is filled with the transcript and the default sentinels.
const userPromptTemplate = `Analyze the following transcript of a medical consultation and extract the information as structured JSON.

TRANSCRIPT:
%s

Return ONLY a valid JSON object with exactly this structure (no markdown, no additional text):
{
  "patient": {
    "name": "patient name, or '%s' if not mentioned",
    "age": "patient age, or '%s' if not mentioned",
    "sex": "patient sex, or '%s' if not mentioned"
  },
  "reasonForVisit": "main reason for the consultation, or '%s'",
  "history": "relevant medical history, or '%s'",
  "symptoms": ["list", "of", "identified", "symptoms"],
  "physicalExam": "physical examination findings, or '%s'",
  "diagnosis": "diagnosis or diagnostic impression, or '%s'",
  "treatment": "treatment plan, medications and instructions, or '%s'",
  "notes": "additional notes or recommended follow-up, or '%s'"
}

If a field has no information in the transcript, use the default value shown above, but always return the complete JSON object.`

// UserPrompt renders the user message for a transcript.
func UserPrompt(transcript string) string {
	return fmt.Sprintf(userPromptTemplate,
		transcript,
		record.NotSpecified, record.NotSpecified, record.NotSpecified,
		record.NotSpecified,
		record.NoHistoryMentioned,
		record.NotSpecified,
		record.NoDiagnosis,
		record.NoTreatment,
		record.NoNotes,
	)
}

// SystemPrompt returns the fixed system instruction.
func SystemPrompt() string {
	return systemPrompt
}
