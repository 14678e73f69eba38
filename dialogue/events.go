package dialogue

import (
	"context"
	"fmt"

	"github.com/oakhaven/lelock/memory"
)

// Trust movement for world events that happen outside a spoken exchange.
const (
	trustGiftReceived = 5
	trustGiftGiven    = 3
	trustCelebration  = 2
	trustComfort      = 3
)

// GiftReceived records the player giving an item to a character and deepens
// the relationship.
func (e *Engine) GiftReceived(ctx context.Context, characterID, item, reaction string) (float64, error) {
	if _, err := e.personas.Get(characterID); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	if _, err := e.store.RememberGift(ctx, characterID, item, reaction); err != nil {
		return 0, err
	}
	return e.personas.AdjustTrust(characterID, trustGiftReceived)
}

// GiftGiven records a character giving the player something.
func (e *Engine) GiftGiven(ctx context.Context, characterID, item string) (float64, error) {
	if _, err := e.personas.Get(characterID); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	content := fmt.Sprintf("I gave %s a %s today.", e.opts.PlayerName, item)
	if _, err := e.store.Record(ctx, characterID, memory.TypeObservation, content, 0.6,
		[]string{memory.TagGift, memory.TagPlayer}); err != nil {
		return 0, err
	}
	return e.personas.AdjustTrust(characterID, trustGiftGiven)
}

// SecretShared records the player confiding in a character. Secrets never
// decay.
func (e *Engine) SecretShared(ctx context.Context, characterID, secret string) error {
	if _, err := e.personas.Get(characterID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	_, err := e.store.RememberSecret(ctx, characterID, e.opts.PlayerName, secret)
	return err
}

// PromiseMade records a commitment the character made to the player.
func (e *Engine) PromiseMade(ctx context.Context, characterID, what string) error {
	if _, err := e.personas.Get(characterID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	_, err := e.store.RememberPromise(ctx, characterID, e.opts.PlayerName, what)
	return err
}

// Celebrate records a shared happy moment, such as a festival or the
// player's achievement the character witnessed.
func (e *Engine) Celebrate(ctx context.Context, characterID, moment string) (float64, error) {
	if _, err := e.personas.Get(characterID); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	if _, err := e.store.Record(ctx, characterID, memory.TypeObservation, moment, 0.6,
		[]string{memory.TagEmotional, memory.TagPlayer}); err != nil {
		return 0, err
	}
	return e.personas.AdjustTrust(characterID, trustCelebration)
}

// Comfort records a character consoling the player through a hard moment.
// Being there for someone builds trust faster than small talk does.
func (e *Engine) Comfort(ctx context.Context, characterID, moment string) (float64, error) {
	if _, err := e.personas.Get(characterID); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	content := fmt.Sprintf("I comforted %s when they were upset: %s", e.opts.PlayerName, moment)
	if _, err := e.store.Record(ctx, characterID, memory.TypeObservation, content, 0.7,
		[]string{memory.TagEmotional, memory.TagPlayer}); err != nil {
		return 0, err
	}
	return e.personas.AdjustTrust(characterID, trustComfort)
}
