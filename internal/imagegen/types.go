package imagegen

// DesignInput describes what the design instruction talks about. Image bytes
// are sent separately in the order template, references, logo, user images.
type DesignInput struct {
	ProductName        string
	ProductDescription string
	Parts              string
	Constraints        string
	References         []string
	HasLogo            bool
	UserImageCount     int
	Concept            string
	Instructions       string
}
