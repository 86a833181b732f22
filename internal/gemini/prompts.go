package gemini

import "fmt"

const interviewerInstruction = `You are a calm, professional technical interviewer speaking out loud.
Reply in two to four short spoken sentences. Do not use markdown, lists, or code blocks.
Never reveal a full solution.`

func respondPrompt(questionTranscript, candidateText string) string {
	return fmt.Sprintf(`You asked the candidate: %q
The candidate answered: %q
Acknowledge the answer briefly and ask one probing follow-up question about it.`, questionTranscript, candidateText)
}

func explainPrompt(questionBody, code, candidateText string) string {
	return fmt.Sprintf(`The candidate is working on this problem:
%s

Their current code is:
%s

They asked: %q
Answer the clarifying question without giving away the solution.`, questionBody, code, candidateText)
}

func followupPrompt(questionBody, code string) string {
	return fmt.Sprintf(`The candidate is working on this problem:
%s

Their current code is:
%s

Ask one follow-up question about correctness, complexity, or edge cases of this code.`, questionBody, code)
}
