package summary

import "fmt"

// promptFor builds the model prompt for a summary type. Each template asks
// for a JSON object shaped like Result so the response can be decoded
// directly.
func promptFor(summaryType Type, text string) string {
	switch summaryType {
	case TypeActionItems:
		return fmt.Sprintf(`Analyze this transcription and extract action items, tasks, and to-dos:

Text: %s

Please provide a JSON response with:
- action_items: List of specific tasks or actions mentioned
- Each action item should include task, responsible_party (if mentioned), and deadline (if mentioned)

Make sure the response is valid JSON format.`, text)

	case TypeKeyPoints:
		return fmt.Sprintf(`Analyze this transcription and extract the key points and main takeaways:

Text: %s

Please provide a JSON response with:
- key_points: List of the most important points discussed
- summary: Brief overall summary

Make sure the response is valid JSON format.`, text)

	case TypeSpeakerAnalysis:
		return fmt.Sprintf(`Analyze this transcription and provide per-speaker analysis:

Text: %s

Please provide a JSON response with:
- speaker_summary: List of objects with speaker_id and main_points for each speaker
- summary: Overall summary of the conversation

Make sure the response is valid JSON format.`, text)

	default:
		return fmt.Sprintf(`Analyze this meeting transcription and provide a comprehensive summary:

Text: %s

Please provide a JSON response with:
- summary: Brief overall summary (2-3 sentences)
- key_points: List of main discussion points
- action_items: List of tasks/actions with responsible_party and deadline if mentioned
- decisions: List of decisions made
- next_steps: List of next steps or follow-ups

Make sure the response is valid JSON format.`, text)
	}
}
