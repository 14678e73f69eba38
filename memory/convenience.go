package memory

import (
	"context"
	"fmt"
)

// Standing importance levels for the common villager memory events.
const (
	giftImportance    = 0.7
	secretImportance  = 0.9
	promiseImportance = 0.85
	meetingImportance = 0.9
)

// RememberGift records receiving an item from the player.
func (s *Store) RememberGift(ctx context.Context, ownerID, item, reaction string) (Memory, error) {
	content := fmt.Sprintf("The player gave me a %s. %s", item, reaction)
	return s.Record(ctx, ownerID, TypeObservation, content, giftImportance,
		[]string{TagGift, TagPlayer, TagEmotional})
}

// RememberSecret records a confided secret. Secrets are core: the character
// never forgets them.
func (s *Store) RememberSecret(ctx context.Context, ownerID, who, secret string) (Memory, error) {
	content := fmt.Sprintf("%s told me a secret: %s", who, secret)
	return s.Record(ctx, ownerID, TypeObservation, content, secretImportance,
		[]string{TagSecret, TagCore, TagPlayer})
}

// RememberPromise records a commitment the character made. Promises are
// plans and core; breaking one silently would undercut the world.
func (s *Store) RememberPromise(ctx context.Context, ownerID, who, what string) (Memory, error) {
	content := fmt.Sprintf("I promised %s that I would: %s", who, what)
	return s.Record(ctx, ownerID, TypePlan, content, promiseImportance,
		[]string{TagPromise, TagCore})
}

// RememberFirstMeeting records the first encounter with the player as a
// core memory.
func (s *Store) RememberFirstMeeting(ctx context.Context, ownerID, playerName string) (Memory, error) {
	content := fmt.Sprintf("I met %s for the first time today.", playerName)
	return s.Record(ctx, ownerID, TypeObservation, content, meetingImportance,
		[]string{TagCore, TagPlayer, TagEmotional})
}

// RecordWitnessed records an event the character saw happen in the world.
func (s *Store) RecordWitnessed(ctx context.Context, ownerID, event string, importance float64) (Memory, error) {
	return s.Record(ctx, ownerID, TypeObservation, event, importance, nil)
}

// RecordWitnessedAll records one world event for every character who saw it,
// such as the whole square watching the festival fireworks. Each witness gets
// their own copy so later recall and decay run independently.
func (s *Store) RecordWitnessedAll(ctx context.Context, event string, importance float64, ownerIDs ...string) error {
	for _, ownerID := range ownerIDs {
		if _, err := s.RecordWitnessed(ctx, ownerID, event, importance); err != nil {
			return fmt.Errorf("record witnessed event for %s: %w", ownerID, err)
		}
	}
	return nil
}
