package domain

import "time"

// ConceptPlaceholder is replaced with the job's concept text in simulation prompts.
const ConceptPlaceholder = "{{concept}}"

// MaxSimulationTemplates bounds a single simulation batch.
const MaxSimulationTemplates = 3

// PromptTemplate is a stored instruction used to render a simulation scene.
type PromptTemplate struct {
	ID        int64
	Name      string
	Prompt    string
	IsDefault bool
	CreatedAt time.Time
}

// DefaultPromptTemplates are seeded when the template table is empty.
var DefaultPromptTemplates = []PromptTemplate{
	{
		Name: "Product box",
		Prompt: `Using the attached design as reference, create a retail box in the same style as the design and place the box next to the design.

Requirements:
- Design the box around the same concept as the design
- Arrange the box and the design so both are clearly visible
- {{concept}}
- Product photography style with natural lighting and shadows`,
		IsDefault: true,
	},
	{
		Name: "Concert close-up",
		Prompt: `Using the attached design as reference, show a person at a concert holding the design carefully.

Requirements:
- Concert atmosphere with dark venue and stage lighting
- The person holds the design naturally and with care
- The design glows under the lights
- Warm and moving mood
- {{concept}}`,
		IsDefault: true,
	},
	{
		Name: "Concert wide shot",
		Prompt: `Using the attached design as reference, show a concert where the stage is small in the distance and the whole audience holds this design to cheer for the artist.

Requirements:
- Frame the stage far away and small
- Many people in the audience hold the same design
- The designs sparkle under the lights
- Energetic concert atmosphere
- {{concept}}`,
		IsDefault: true,
	},
}
