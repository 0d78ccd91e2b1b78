package domain

// Event describes one business occurrence that should be fanned out.
// ID is an optional idempotency key; events sharing an ID are dispatched once.
type Event struct {
	ID             string  `json:"event_id,omitempty"`
	Kind           Kind    `json:"kind"`
	ActorID        string  `json:"actor_id"`
	SubjectOwnerID string  `json:"subject_owner_id"`
	Subject        Subject `json:"subject"`
}

// Subject is the post or profile the event is about.
type Subject struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedBy  string    `json:"created_by"`
	Listing    *Listing  `json:"listing,omitempty"`
	Commenters []UserRef `json:"-"`
	// Excerpt is a short piece of user text (a comment body, a rating note) shown in messages.
	Excerpt string `json:"excerpt,omitempty"`
	// Stars is set on rating events.
	Stars int `json:"stars,omitempty"`
}

// Listing carries the tuition fields rendered by channel formatters.
type Listing struct {
	Class            string `json:"class"`
	Subject          string `json:"subject"`
	Board            string `json:"board"`
	Salary           string `json:"salary"`
	Time             string `json:"time"`
	Address          string `json:"address"`
	GenderPreference string `json:"gender_preference"`
}

// Content is the channel-independent text of a notification.
type Content struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
}
