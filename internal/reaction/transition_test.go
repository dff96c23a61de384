package reaction

import (
	"errors"
	"testing"

	"github.com/cinevo/backend/internal/models"
)

func strPtr(s string) *string { return &s }

func TestResolveCreate(t *testing.T) {
	got, err := Resolve("", strPtr(models.ReactionLike))
	if err != nil {
		t.Fatalf("resolve like from empty: %v", err)
	}
	want := Transition{Op: OpCreate, NewType: models.ReactionLike, LikesDelta: 1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	got, err = Resolve("", strPtr(models.ReactionDislike))
	if err != nil {
		t.Fatalf("resolve dislike from empty: %v", err)
	}
	want = Transition{Op: OpCreate, NewType: models.ReactionDislike, DislikesDelta: 1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestResolveRepeatIsNoOp(t *testing.T) {
	got, err := Resolve(models.ReactionLike, strPtr(models.ReactionLike))
	if err != nil {
		t.Fatalf("resolve repeat like: %v", err)
	}
	if got.Op != OpNone || got.LikesDelta != 0 || got.DislikesDelta != 0 {
		t.Fatalf("expected no-op transition, got %+v", got)
	}
	if got.NewType != models.ReactionLike {
		t.Fatalf("expected NewType to stay %q, got %q", models.ReactionLike, got.NewType)
	}
}

func TestResolveFlipMovesBothCounters(t *testing.T) {
	got, err := Resolve(models.ReactionLike, strPtr(models.ReactionDislike))
	if err != nil {
		t.Fatalf("resolve like to dislike: %v", err)
	}
	want := Transition{Op: OpUpdate, NewType: models.ReactionDislike, LikesDelta: -1, DislikesDelta: 1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	got, err = Resolve(models.ReactionDislike, strPtr(models.ReactionLike))
	if err != nil {
		t.Fatalf("resolve dislike to like: %v", err)
	}
	want = Transition{Op: OpUpdate, NewType: models.ReactionLike, LikesDelta: 1, DislikesDelta: -1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestResolveRemove(t *testing.T) {
	got, err := Resolve(models.ReactionLike, nil)
	if err != nil {
		t.Fatalf("remove like: %v", err)
	}
	want := Transition{Op: OpDelete, LikesDelta: -1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	got, err = Resolve(models.ReactionDislike, nil)
	if err != nil {
		t.Fatalf("remove dislike: %v", err)
	}
	want = Transition{Op: OpDelete, DislikesDelta: -1}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	got, err = Resolve("", nil)
	if err != nil {
		t.Fatalf("remove with no reaction: %v", err)
	}
	if got.Op != OpNone || got.LikesDelta != 0 || got.DislikesDelta != 0 {
		t.Fatalf("expected no-op removing absent reaction, got %+v", got)
	}
}

func TestResolveRoundTripNetsToZero(t *testing.T) {
	likes, dislikes := 0, 0
	apply := func(tr Transition) {
		likes += tr.LikesDelta
		dislikes += tr.DislikesDelta
	}

	current := ""
	for _, desired := range []*string{strPtr(models.ReactionLike), strPtr(models.ReactionDislike), strPtr(models.ReactionLike), nil} {
		tr, err := Resolve(current, desired)
		if err != nil {
			t.Fatalf("resolve step: %v", err)
		}
		apply(tr)
		current = tr.NewType
	}

	if likes != 0 || dislikes != 0 {
		t.Fatalf("expected counters to net to zero, got likes=%d dislikes=%d", likes, dislikes)
	}
	if current != "" {
		t.Fatalf("expected terminal state to be no reaction, got %q", current)
	}
}

func TestResolveRejectsUnknownType(t *testing.T) {
	if _, err := Resolve("", strPtr("love")); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if _, err := Resolve(models.ReactionLike, strPtr("")); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType for empty string, got %v", err)
	}
}

func TestValidDesired(t *testing.T) {
	if !ValidDesired(nil) {
		t.Fatal("expected nil to be valid")
	}
	if !ValidDesired(strPtr(models.ReactionLike)) || !ValidDesired(strPtr(models.ReactionDislike)) {
		t.Fatal("expected like and dislike to be valid")
	}
	if ValidDesired(strPtr("meh")) {
		t.Fatal("expected unknown type to be invalid")
	}
}
