package motiondb

import (
	"errors"
	"testing"
)

const testDatabase = `{
  "actors": {
    "humanoid": [
      {"clip": "walk", "tags": ["locomote", "normal"]},
      {"clip": "crwalk", "tags": ["locomote", "crouch"]},
      {"clip": "sword1", "tags": ["attack", "direct"]},
      {"clip": "sword2", "tags": ["attack", "direct"]},
      {"clip": "sweep", "tags": ["attack"]}
    ],
    "spider": [
      {"clip": "skitter", "tags": ["locomote"]}
    ]
  }
}`

func mustLoad(t *testing.T) *Database {
	t.Helper()
	db, err := Load([]byte(testDatabase))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return db
}

func TestResolveRequiredTags(t *testing.T) {
	db := mustLoad(t)

	clip, err := db.Resolve(Query{
		ActorType: "humanoid",
		Items:     []QueryItem{{Tag: "locomote"}, {Tag: "crouch"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if clip != "crwalk" {
		t.Fatalf("clip = %q, want crwalk", clip)
	}
}

func TestResolveOptionalTagRanks(t *testing.T) {
	db := mustLoad(t)

	// "direct" is optional, but the entries carrying it outrank the
	// plain sweep.
	clip, err := db.Resolve(Query{
		ActorType: "humanoid",
		Items:     []QueryItem{{Tag: "attack"}, {Tag: "direct", Optional: true}},
		Selection: SelectSequential,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if clip != "sword1" && clip != "sword2" {
		t.Fatalf("clip = %q, want a direct attack", clip)
	}
}

func TestResolveSequentialCycles(t *testing.T) {
	db := mustLoad(t)
	q := Query{
		ActorType: "humanoid",
		Items:     []QueryItem{{Tag: "attack"}, {Tag: "direct"}},
		Selection: SelectSequential,
	}

	first, _ := db.Resolve(q)
	second, _ := db.Resolve(q)
	third, _ := db.Resolve(q)
	if first == second {
		t.Fatalf("sequential selection repeated %q", first)
	}
	if third != first {
		t.Fatalf("sequential selection did not wrap: %q %q %q", first, second, third)
	}
}

func TestResolveErrors(t *testing.T) {
	db := mustLoad(t)

	_, err := db.Resolve(Query{ActorType: "turret"})
	if !errors.Is(err, ErrNoActorType) {
		t.Fatalf("err = %v, want ErrNoActorType", err)
	}

	_, err = db.Resolve(Query{
		ActorType: "spider",
		Items:     []QueryItem{{Tag: "attack"}},
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	if _, err := Load([]byte(`{"actors": {"humanoid": [{"tags": []}]}}`)); err == nil {
		t.Fatal("entry without a clip name accepted")
	}
	if _, err := Load([]byte(`{"clips": []}`)); err == nil {
		t.Fatal("document without actors accepted")
	}
	if _, err := Load([]byte(`not json`)); err == nil {
		t.Fatal("malformed JSON accepted")
	}
}
