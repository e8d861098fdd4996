package ws

import (
	"encoding/json"
	"log"

	"echochat/internal/chat"
	"echochat/pkg/apperr"
)

// A user whose unused pre-key stock falls below this after a fetch gets a
// preKeysLow nudge so their client can replenish.
const preKeyLowThreshold = 10

func (c *Client) handleUploadKeyBundle(data json.RawMessage) {
	var in uploadKeyBundleIn
	if !decode(c, data, &in) {
		return
	}

	err := c.hub.services.Keys.UpsertBundle(c.userID, chat.KeyBundleData{
		RegistrationID:        in.RegistrationID,
		IdentityPublicKey:     in.IdentityPublicKey,
		SignedPreKeyID:        in.SignedPreKeyID,
		SignedPreKeyPublic:    in.SignedPreKeyPublic,
		SignedPreKeySignature: in.SignedPreKeySignature,
	})
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to upload key bundle"))
		return
	}

	c.Send("keyBundleUploaded", keyBundleUploadedPayload{Success: true})
}

func (c *Client) handleUploadOneTimePreKeys(data json.RawMessage) {
	var in uploadOneTimePreKeysIn
	if !decode(c, data, &in) {
		return
	}

	keys := make([]chat.PreKeyInput, 0, len(in.Keys))
	for _, key := range in.Keys {
		keys = append(keys, chat.PreKeyInput{KeyID: key.KeyID, PublicKey: key.PublicKey})
	}

	if err := c.hub.services.Keys.UploadOneTimePreKeys(c.userID, keys); err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to upload pre-keys"))
		return
	}

	c.Send("oneTimePreKeysUploaded", preKeysUploadedPayload{Count: len(keys)})
}

// handleFetchPreKeyBundle hands out the target's bundle, consuming one
// one-time pre-key. The bundle in the response is null when the target
// never published keys. If the fetch drains the target's stock below the
// threshold and they are online, they get a preKeysLow nudge.
func (c *Client) handleFetchPreKeyBundle(data json.RawMessage) {
	var in fetchPreKeyBundleIn
	if !decode(c, data, &in) {
		return
	}

	bundle, err := c.hub.services.Keys.FetchBundle(in.UserID)
	if err != nil {
		c.sendError(apperr.UserMessage(err, "Failed to fetch pre-key bundle"))
		return
	}

	c.Send("preKeyBundleResponse", preKeyBundleResponsePayload{
		UserID: in.UserID,
		Bundle: bundle,
	})

	if bundle == nil {
		return
	}
	remaining, err := c.hub.services.Keys.CountUnused(in.UserID)
	if err != nil {
		log.Printf("ws: failed to count pre-keys for user %d: %v", in.UserID, err)
		return
	}
	if remaining < preKeyLowThreshold {
		c.hub.SendTo(in.UserID, "preKeysLow", preKeysLowPayload{Remaining: remaining})
	}
}
