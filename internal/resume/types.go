package resume

import "encoding/json"

// Section names accepted in update and submit messages. These mirror the
// frontend's field names, so the JSON casing is part of the contract.
const (
	SectionName           = "name"
	SectionAboutMe        = "aboutMe"
	SectionEducation      = "education"
	SectionExperience     = "experience"
	SectionContact        = "contact"
	SectionSkills         = "skills"
	SectionCustomSections = "customSections"
)

// ChangeType values carried by UpdateMessage.
const (
	ChangeAdd    = "add"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// Name 表示简历头部的姓名。
type Name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AboutMe is the single self-description block. PolishedDescription is set by
// the polishing client and, once accepted, also overwrites Description; the
// pre-polish original is not retained server-side.
type AboutMe struct {
	Description         string `json:"description"`
	PolishedDescription string `json:"polishedDescription,omitempty"`
}

// Education is one entry in the education section. Dates use YYYY-MM, an
// empty EndDate meaning "Present".
type Education struct {
	ID                  string `json:"id"`
	Degree              string `json:"degree"`
	Institution         string `json:"institution"`
	StartDate           string `json:"startDate"`
	EndDate             string `json:"endDate"`
	Description         string `json:"description"`
	PolishedDescription string `json:"polishedDescription,omitempty"`
}

// Experience is one entry in the experience section.
type Experience struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Company             string   `json:"company"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	Description         string   `json:"description"`
	Keywords            []string `json:"keywords,omitempty"`
	PolishedDescription string   `json:"polishedDescription,omitempty"`
}

// Contact is one contact line (Email, Phone, LinkedIn, ...).
type Contact struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Skill is one entry in the skills section.
type Skill struct {
	ID    string `json:"id"`
	Skill string `json:"skill"`
}

// CustomSection is a free-form user-defined section. It has no
// polishedDescription; polishing overwrites Content directly.
type CustomSection struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ResumeData is the aggregate document, owned by one session.
type ResumeData struct {
	Name           Name            `json:"name"`
	AboutMe        AboutMe         `json:"aboutMe"`
	Education      []Education     `json:"education"`
	Experience     []Experience    `json:"experience"`
	Contact        []Contact       `json:"contact"`
	Skills         []Skill         `json:"skills"`
	CustomSections []CustomSection `json:"customSections"`
}

// UpdateMessage is the sole mutation contract into the document. Content is
// the raw JSON for the section-specific entry type; nil for delete.
type UpdateMessage struct {
	Section    string          `json:"section"`
	EntryID    string          `json:"entryId"`
	ChangeType string          `json:"changeType"`
	Content    json.RawMessage `json:"content"`
}

// SubmitTrigger asks for the currently stored state of one section to be
// (re)rendered. Editing alone never triggers rendering.
type SubmitTrigger struct {
	Section    string `json:"section"`
	EntryID    string `json:"entryId"`
	ChangeType string `json:"changeType"`
}

// Clone returns a deep copy of the document. Apply works on clones so the
// reducer stays pure.
func (d ResumeData) Clone() ResumeData {
	out := d
	out.Education = append([]Education(nil), d.Education...)
	out.Experience = make([]Experience, len(d.Experience))
	for i, exp := range d.Experience {
		exp.Keywords = append([]string(nil), exp.Keywords...)
		out.Experience[i] = exp
	}
	out.Contact = append([]Contact(nil), d.Contact...)
	out.Skills = append([]Skill(nil), d.Skills...)
	out.CustomSections = append([]CustomSection(nil), d.CustomSections...)
	return out
}

// IsEmpty reports whether the document carries no content at all.
func (d ResumeData) IsEmpty() bool {
	return d.Name == Name{} &&
		d.AboutMe == AboutMe{} &&
		len(d.Education) == 0 &&
		len(d.Experience) == 0 &&
		len(d.Contact) == 0 &&
		len(d.Skills) == 0 &&
		len(d.CustomSections) == 0
}
