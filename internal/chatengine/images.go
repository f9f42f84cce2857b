package chatengine

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/data"
)

// UpdateChatImage swaps a chat's image: the prior image document (when one is
// referenced) is deleted in the same transaction that creates and attaches
// the replacement. Authorization mirrors message posting: participant and
// not muted.
func (e *Engine) UpdateChatImage(ctx context.Context, principalID, chatID bson.ObjectID, source, alt string) (*data.Image, error) {
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

	if source == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "image source must not be empty")
	}

	var img *data.Image
	err = e.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		if chat.ImageID != nil {
			// a prior image already gone is fine; only store failures abort
			if _, err := e.images.DeleteImage(txCtx, *chat.ImageID); err != nil {
				return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to delete previous image")
			}
		}

		img, err = e.images.InsertImage(txCtx, &data.Image{Source: source, Alt: alt})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save image")
		}

		matched, err := e.chats.SetImage(txCtx, chat.ID, img.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update chat")
		}
		if !matched {
			return apperr.New(apperr.KindReferenceNotFound, "chat not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}

// UpdateProfileImage swaps the acting principal's profile image with the same
// two-phase delete-then-attach shape as UpdateChatImage.
func (e *Engine) UpdateProfileImage(ctx context.Context, principalID bson.ObjectID, source, alt string) (*data.Image, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	if source == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "image source must not be empty")
	}

	var img *data.Image
	err = e.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		if principal.Preferences.ProfileImageID != nil {
			if _, err := e.images.DeleteImage(txCtx, *principal.Preferences.ProfileImageID); err != nil {
				return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to delete previous image")
			}
		}

		img, err = e.images.InsertImage(txCtx, &data.Image{Source: source, Alt: alt})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save image")
		}

		matched, err := e.users.SetProfileImage(txCtx, principal.ID, img.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update your account")
		}
		if !matched {
			return apperr.New(apperr.KindPrincipalNotFound, "your account could not be updated")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}
