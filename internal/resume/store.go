package resume

import (
	"encoding/json"
	"fmt"
)

// Apply is a pure reducer: it returns a new document with the update applied
// and never mutates its input. Singleton sections (name, aboutMe) are replaced
// wholesale for add/update and cleared on delete. List sections append on add
// and locate the entry by id for update/delete; a missing id is a silent
// no-op, matching the frontend's permissive contract.
func Apply(doc ResumeData, update UpdateMessage) (ResumeData, error) {
	if update.ChangeType != ChangeAdd && update.ChangeType != ChangeUpdate && update.ChangeType != ChangeDelete {
		return doc, fmt.Errorf("unknown change type %q", update.ChangeType)
	}

	out := doc.Clone()

	switch update.Section {
	case SectionName:
		if update.ChangeType == ChangeDelete {
			out.Name = Name{}
			return out, nil
		}
		var name Name
		if err := decodeContent(update, &name); err != nil {
			return doc, err
		}
		out.Name = name

	case SectionAboutMe:
		if update.ChangeType == ChangeDelete {
			out.AboutMe = AboutMe{}
			return out, nil
		}
		var about AboutMe
		if err := decodeContent(update, &about); err != nil {
			return doc, err
		}
		out.AboutMe = about

	case SectionEducation:
		if err := applyList(update, &out.Education, func(e Education) string { return e.ID }); err != nil {
			return doc, err
		}

	case SectionExperience:
		if err := applyList(update, &out.Experience, func(e Experience) string { return e.ID }); err != nil {
			return doc, err
		}

	case SectionContact:
		if err := applyList(update, &out.Contact, func(e Contact) string { return e.ID }); err != nil {
			return doc, err
		}

	case SectionSkills:
		if err := applyList(update, &out.Skills, func(e Skill) string { return e.ID }); err != nil {
			return doc, err
		}

	case SectionCustomSections:
		if err := applyList(update, &out.CustomSections, func(e CustomSection) string { return e.ID }); err != nil {
			return doc, err
		}

	default:
		return doc, fmt.Errorf("unknown section %q", update.Section)
	}

	return out, nil
}

func decodeContent(update UpdateMessage, target any) error {
	if len(update.Content) == 0 {
		return fmt.Errorf("%s %s: content is required", update.Section, update.ChangeType)
	}
	if err := json.Unmarshal(update.Content, target); err != nil {
		return fmt.Errorf("decode %s content: %w", update.Section, err)
	}
	return nil
}

// applyList implements add/update/delete over one of the list-valued
// sections. update/delete on an id that is not present leave the list as-is.
func applyList[T any](update UpdateMessage, list *[]T, id func(T) string) error {
	switch update.ChangeType {
	case ChangeAdd:
		var entry T
		if err := decodeContent(update, &entry); err != nil {
			return err
		}
		*list = append(*list, entry)

	case ChangeUpdate:
		var entry T
		if err := decodeContent(update, &entry); err != nil {
			return err
		}
		for i := range *list {
			if id((*list)[i]) == update.EntryID {
				(*list)[i] = entry
				break
			}
		}

	case ChangeDelete:
		for i := range *list {
			if id((*list)[i]) == update.EntryID {
				*list = append((*list)[:i], (*list)[i+1:]...)
				break
			}
		}
	}

	return nil
}
