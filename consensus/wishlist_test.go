package consensus

import (
	"testing"

	"github.com/praizmiky/massa/models"
)

func TestWishlistRequestsEachIdOnlyOnce(t *testing.T) {
	w := NewWishlist(100)
	var id models.BlockId
	id[0] = 1

	if !w.ShouldRequest(id) {
		t.Fatal("expected first request for a fresh id to return true")
	}
	if w.ShouldRequest(id) {
		t.Fatal("expected a repeated request for the same id to return false")
	}
}

func TestWishlistResetForgetsPriorEntries(t *testing.T) {
	w := NewWishlist(100)
	var id models.BlockId
	id[0] = 2

	w.ShouldRequest(id)
	w.Reset()

	if !w.ShouldRequest(id) {
		t.Fatal("expected id to be requestable again after Reset")
	}
}

func TestWishlistDistinctIdsAreIndependent(t *testing.T) {
	w := NewWishlist(100)
	var a, b models.BlockId
	a[0], b[0] = 1, 2

	if !w.ShouldRequest(a) || !w.ShouldRequest(b) {
		t.Fatal("expected distinct ids to each be requestable")
	}
}
