// Package homework validates status API payloads and turns homework
// records into chat-ready text.
//
// Everything here is pure: no I/O, no clocks, no logging.
package homework

// Status is a review state reported by the status API.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

// Payload keys of the status API.
const (
	KeyHomeworks   = "homeworks"
	KeyName        = "homework_name"
	KeyStatus      = "status"
	KeyCurrentDate = "current_date"
)

var verdicts = map[Status]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Verdict returns the human text for a known status.
func Verdict(s Status) (string, bool) {
	v, ok := verdicts[s]
	return v, ok
}

// Record is the part of a homework entry the bot cares about.
type Record struct {
	Name   string
	Status Status
}
