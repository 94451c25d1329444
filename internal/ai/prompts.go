package ai

import "fmt"

func CorrectionPrompt(query, corrected string) string {
	return fmt.Sprintf("The user searched for '%s' but I think they meant '%s'. "+
		"Provide the corrected movie name in bold and give a brief description of the movie.", query, corrected)
}

func UnknownTitlePrompt(query string) string {
	return fmt.Sprintf("The user searched for a movie called '%s' but it wasn't found. "+
		"Suggest the most likely correct movie name in bold and provide some details about it.", query)
}

func FunFactPrompt(title string) string {
	return fmt.Sprintf("Give me some interesting fun facts about the movie %s. Keep it under 120 words.", title)
}

// QuestionPrompt frames a free question as a movie assistant answer.
func QuestionPrompt(q string) string {
	return "You are a friendly movie assistant. Answer briefly.\n\n" + q
}
