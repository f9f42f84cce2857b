package chatengine

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/data"
)

// Draft is the content of a message to append: exactly one of Text/ImageID
// must be set. ReplyingTo, when non-empty, is the hex id of the message being
// replied to; only its format is validated at write time.
type Draft struct {
	Text       string
	ImageID    *bson.ObjectID
	ReplyingTo string
}

// PostMessage appends a message to a chat's ledger. The message document is
// persisted first, then its id is prepended to the chat's newest-first
// message list together with a lastActivity bump. When the chat update
// matches nothing the stored message stays orphaned; user content is never
// deleted to compensate.
func (e *Engine) PostMessage(ctx context.Context, principalID, chatID bson.ObjectID, draft Draft) (*data.Message, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	chat, err := e.resolveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	self := chat.ParticipantEntry(principal.ID)
	if self == nil {
		return nil, apperr.New(apperr.KindForbidden, "you are not a participant of this chat")
	}
	if self.Muted {
		return nil, apperr.New(apperr.KindForbidden, "you are muted in this chat")
	}

	hasText := draft.Text != ""
	hasImage := draft.ImageID != nil
	if hasText == hasImage {
		return nil, apperr.New(apperr.KindInvalidInput, "a message carries exactly one of text or image")
	}

	var replyingTo *bson.ObjectID
	if draft.ReplyingTo != "" {
		id, err := bson.ObjectIDFromHex(draft.ReplyingTo)
		if err != nil {
			return nil, apperr.New(apperr.KindInvalidInput, "replyingTo is not a valid message id")
		}
		replyingTo = &id
	}

	now := time.Now()
	msg, err := e.msgs.InsertMessage(ctx, &data.Message{
		Author:     principal.ID,
		Text:       draft.Text,
		ImageID:    draft.ImageID,
		ReplyingTo: replyingTo,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save message")
	}

	matched, err := e.chats.PrependMessage(ctx, chat.ID, msg.ID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update chat")
	}
	if !matched {
		// the message document survives unreferenced; a periodic sweep can
		// reconcile it
		log.Printf("message %s orphaned: chat %s vanished before the ledger update", msg.ID.Hex(), chat.ID.Hex())
		return nil, apperr.New(apperr.KindReferenceNotFound, "chat not found")
	}

	return msg, nil
}
