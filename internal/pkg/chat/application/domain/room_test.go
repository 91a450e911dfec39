package chat

import (
	"encoding/json"
	"testing"
	"time"
)

// Room rides inside RoomView payloads next to snake_case siblings, so
// its wire keys must be snake_case too.
func TestRoomSerializesWithSnakeCaseKeys(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Room{ID: 7, ListingID: 10, CreatedAt: ts, UpdatedAt: ts})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, want := range []string{"id", "listing_id", "created_at", "updated_at"} {
		if _, ok := keys[want]; !ok {
			t.Fatalf("missing key %q in %s", want, raw)
		}
	}
	if len(keys) != 4 {
		t.Fatalf("unexpected keys in %s", raw)
	}
}
