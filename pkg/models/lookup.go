package models

// Segment is a contact segment that can trigger a workflow.
type Segment struct {
	ID           string `json:"id"            yaml:"id"`
	Name         string `json:"name"          yaml:"name"`
	ContactCount int    `json:"contact_count" yaml:"contact_count"`
}

// ContactCategory is an unsubscribe category.
type ContactCategory struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Sender is a verified from-address.
type Sender struct {
	ID    string `json:"id"    yaml:"id"`
	Name  string `json:"name"  yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Template is a stored email template.
type Template struct {
	ID      string `json:"id"      yaml:"id"`
	Name    string `json:"name"    yaml:"name"`
	Subject string `json:"subject" yaml:"subject"`
}

// Lookups bundles the selector sources the builder needs.
type Lookups struct {
	Segments   []Segment         `json:"segments"   yaml:"segments"`
	Categories []ContactCategory `json:"categories" yaml:"categories"`
	Senders    []Sender          `json:"senders"    yaml:"senders"`
	Templates  []Template        `json:"templates"  yaml:"templates"`
}

// SenderByID finds a sender in the lookup list.
func (l *Lookups) SenderByID(id string) (Sender, bool) {
	for _, s := range l.Senders {
		if s.ID == id {
			return s, true
		}
	}

	return Sender{}, false
}

// ListResponse is the envelope of the lookup endpoints.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}
