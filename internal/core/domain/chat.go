package domain

// ChatMessage is the subset of an incoming chat message the bot front end needs.
type ChatMessage struct {
	ID       int
	ChatID   int64
	Username string
	Text     string
}

type Action string

const (
	Typing         Action = "typing"
	UploadDocument Action = "upload_document"
)

// Usage is what a chat received from the bot since the last daily reset.
type Usage struct {
	Images int
	Bytes  int64
	Local  int
}
