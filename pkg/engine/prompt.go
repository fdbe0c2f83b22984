package engine

import "github.com/tmc/langchaingo/prompts"

// DefaultQuestion asks for a fit summary, a skill checklist and a score.
const DefaultQuestion = `Based on the job description and resume content, provide summary of the resume based on the job description.
Also create a table with skill sets that are asked in the job description. If the candidate has the skill, add a tick mark in the same row in the table, if not add a cross mark.
Is the candidate suitable for the job based on the resume? Score the candidate out of 10 based on the resume.`

const resumeTemplate = `You are an expert HR professional analyzing resumes.

Job Description:
{{.job_description}}

Question: {{.query}}
`

func newResumePrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(resumeTemplate, []string{"job_description", "query"})
}
