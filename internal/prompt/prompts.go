package prompt

const conversionInstruction = `Convert this WhatsApp conversation into a training example for an LLM fine-tuning dataset. Messages from '%s' should be assigned the 'model' role, and messages from others should be the 'user' role.

Format the output as a valid JSON object following this structure:
{
  "contents": [
    {"role": "user/model", "parts": [{"text": "message content"}]},
    ...
  ]
}

Combine sequential messages from the same speaker with a line break between them. Preserve all emojis, slang, and casual language. Output only valid JSON, no explanations.

`

const (
	StartMarker = "CONVERSATION START:"
	EndMarker   = "CONVERSATION END"
)

// DefaultPersona is appended to the bot's name in the reply system instruction.
const DefaultPersona = "You are a helpful friend. Just keep the conversation going with a casual tone."

const systemInstruction = "Your name is %s. %s"
