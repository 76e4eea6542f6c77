package models

import "fmt"

type ActorKind string

const (
	ActorRegistered ActorKind = "registered"
	ActorGuest      ActorKind = "guest"
)

// Actor identifies who authored a comment or vote. Exactly one kind is set.
type Actor struct {
	kind ActorKind
	id   string
}

func RegisteredActor(id string) Actor { return Actor{kind: ActorRegistered, id: id} }

func GuestActor(id string) Actor { return Actor{kind: ActorGuest, id: id} }

func (a Actor) Kind() ActorKind { return a.kind }
func (a Actor) ID() string      { return a.id }
func (a Actor) IsGuest() bool   { return a.kind == ActorGuest }
func (a Actor) IsZero() bool    { return a.kind == "" }

func (a Actor) String() string {
	if a.IsZero() {
		return "anonymous"
	}
	return fmt.Sprintf("%s:%s", a.kind, a.id)
}
