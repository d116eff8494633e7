package redis

import "testing"

func TestKeyBuilding(t *testing.T) {
	t.Parallel()

	c := &Client{}

	cases := map[string]string{
		c.CartSnapshotKey("bc-1"):          "ll:cart_snapshot:bc-1",
		c.CheckoutDraftKey("bc-1"):         "ll:checkout_draft:bc-1",
		c.CheckoutFormKey("bc-1"):          "ll:checkout_form:bc-1",
		c.SyncGuardKey("bc-1", "acct-2"):   "ll:cart_sync:bc-1:acct-2",
		c.CaptureGuardKey("PAY-123"):       "ll:capture_guard:PAY-123",
		c.MutationGuardKey("bc-1", "add"):  "ll:cart_mutation:bc-1:add",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestKeyBuildingSkipsEmptyParts(t *testing.T) {
	t.Parallel()

	c := &Client{}
	if got := c.SyncGuardKey("bc-1", ""); got != "ll:cart_sync:bc-1" {
		t.Fatalf("unexpected key %q", got)
	}
}
