package imagegen

import (
	"fmt"
	"strings"

	"mockupstudio/internal/domain"
)

// SimulationDirective is appended to every simulation instruction.
const SimulationDirective = "Output a single 16:9 landscape image in high-quality photographic style. The design from the attached image must stay clearly recognisable."

// DesignInstruction builds the instruction for a new mockup. Sections appear
// in a fixed order: task framing, template, references, logo, extra images,
// constraints, concept, extra instructions, closing checklist.
func DesignInstruction(in DesignInput) string {
	var b strings.Builder

	b.WriteString("You are a professional product designer. Create a proposal mockup of the product shown in the first image, applying a new design while keeping the product's physical structure exactly as it is.\n")

	b.WriteString("\n## Product template (image 1)\n")
	if name := strings.TrimSpace(in.ProductName); name != "" {
		fmt.Fprintf(&b, "- Product: %s\n", name)
	}
	if desc := strings.TrimSpace(in.ProductDescription); desc != "" {
		fmt.Fprintf(&b, "- Description: %s\n", desc)
	}
	if parts := strings.TrimSpace(in.Parts); parts != "" {
		fmt.Fprintf(&b, "- Parts: %s\n", parts)
	}
	b.WriteString("- Analyse the shape, size, proportions and position of every part. The generated mockup must follow this structure.\n")

	next := 2
	if len(in.References) > 0 {
		b.WriteString("\n## Reference images (style only)\n")
		for i, desc := range in.References {
			desc = strings.TrimSpace(desc)
			if desc == "" {
				desc = "a previously produced design"
			}
			fmt.Fprintf(&b, "- Image %d, reference %d: %s\n", next, i+1, desc)
			next++
		}
		b.WriteString("- Borrow colours, patterns and graphic treatment from the references, but keep the template's structure.\n")
	}

	if in.HasLogo {
		b.WriteString("\n## Logo\n")
		fmt.Fprintf(&b, "- Image %d is the logo. Place it where it fits the product's structure naturally, at a legible size.\n", next)
		next++
	}

	if in.UserImageCount > 0 {
		b.WriteString("\n## Additional design images\n")
		for i := 0; i < in.UserImageCount; i++ {
			fmt.Fprintf(&b, "- Image %d, additional image %d: reflect its design elements in the mockup.\n", next, i+1)
			next++
		}
	}

	if c := strings.TrimSpace(in.Constraints); c != "" {
		b.WriteString("\n## Constraints (non-negotiable)\n")
		b.WriteString(c)
		b.WriteString("\nThese constraints must hold in every case and may not be changed or violated.\n")
	}

	if concept := strings.TrimSpace(in.Concept); concept != "" {
		b.WriteString("\n## Design concept\n")
		b.WriteString(concept)
		b.WriteString("\nBuild the whole design around this concept and carry its mood and style throughout.\n")
	}

	if extra := strings.TrimSpace(in.Instructions); extra != "" {
		b.WriteString("\n## Additional requests\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}

	b.WriteString("\n## Final checklist\n")
	b.WriteString("1. The template's structure is preserved exactly and every part is clearly distinguishable.\n")
	b.WriteString("2. All constraints are satisfied.\n")
	b.WriteString("3. The concept is applied consistently across the whole design.\n")
	b.WriteString("4. Logo, text and images are integrated into one coherent design.\n")
	b.WriteString("5. The result is a sharp, high-resolution render with natural lighting, shadows and material detail.\n")
	b.WriteString("\nReturn the finished mockup as an image.")

	return b.String()
}

// ModificationInstruction builds the instruction for editing a completed
// mockup, which is sent as the only image.
func ModificationInstruction(changeRequest string) string {
	var b strings.Builder
	b.WriteString("You are a professional product designer. The attached image is a product design mockup. Produce a new version that applies the change request below.\n")
	b.WriteString("\n## Change request\n")
	b.WriteString(strings.TrimSpace(changeRequest))
	b.WriteString("\n\n## Rules\n")
	b.WriteString("1. Preserve everything the change request does not mention: style, shape, composition and colours.\n")
	b.WriteString("2. Apply the requested change accurately and naturally.\n")
	b.WriteString("3. Keep the product's structure intact.\n")
	b.WriteString("4. Render in high resolution with realistic lighting.\n")
	b.WriteString("\nReturn the modified mockup as an image.")
	return b.String()
}

// SimulationInstruction renders a prompt template for one simulation scene.
// Every concept placeholder is substituted. Without a concept the placeholder
// is replaced by a style-consistency line, never stripped to an empty slot.
func SimulationInstruction(template, concept string) string {
	concept = strings.TrimSpace(concept)
	replacement := "Keep the design's visual style consistent throughout the scene."
	if concept != "" {
		replacement = "Concept: " + concept + ". Reflect this concept in the whole scene."
	}
	text := strings.ReplaceAll(strings.TrimSpace(template), domain.ConceptPlaceholder, replacement)
	return text + "\n\n" + SimulationDirective
}
