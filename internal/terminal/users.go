package terminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// maxUserNameLength is the longest name the terminals store. Longer names
// are silently truncated by firmware, so we truncate up front to keep the
// record we report consistent with what the device actually holds.
const maxUserNameLength = 24

// PickUID chooses the slot uid for a user write.
//
// Resolution order:
//  1. an explicit uid, if provided (> 0)
//  2. the numeric value of userID, if it parses as a positive integer
//  3. one past the highest uid already on the device
//  4. 1, for an empty device
func PickUID(uid int, userID string, existing []UserRecord) int {
	if uid > 0 {
		return uid
	}
	if n, err := strconv.Atoi(userID); err == nil && n > 0 {
		return n
	}
	max := 0
	for _, u := range existing {
		if u.UID > max {
			max = u.UID
		}
	}
	return max + 1
}

// WriteUser stores a user record on the terminal, handling the firmware
// quirks around user writes:
//
//   - the device is disabled before the write and re-enabled afterwards
//     regardless of the write outcome, because a write against an enabled
//     device can corrupt its user table on some firmware
//   - the user name is truncated to the device's storage limit
//   - write shapes are tried in order from richest to plainest, because
//     older firmware rejects card and password fields; if the session
//     supports no shape at all, ErrSignatureMismatch is returned
func WriteUser(ctx context.Context, sess Session, rec UserRecord) error {
	if len(rec.Name) > maxUserNameLength {
		rec.Name = rec.Name[:maxUserNameLength]
	}

	if err := sess.Disable(ctx); err != nil {
		return fmt.Errorf("disabling device before user write: %w", err)
	}

	writeErr := trySetUser(ctx, sess, rec)

	if err := sess.Enable(ctx); err != nil {
		if writeErr != nil {
			return errors.Join(writeErr, fmt.Errorf("re-enabling device: %w", err))
		}
		return fmt.Errorf("re-enabling device after user write: %w", err)
	}

	return writeErr
}

// trySetUser walks the ordered fallback chain of write shapes.
func trySetUser(ctx context.Context, sess Session, rec UserRecord) error {
	var lastErr error

	if w, ok := sess.(UserWriter); ok {
		if err := w.SetUser(ctx, rec); err == nil {
			return nil
		} else if IsConnectivity(err) {
			return err
		} else {
			lastErr = err
		}
	}

	if w, ok := sess.(BasicUserWriter); ok {
		if err := w.SetUserBasic(ctx, rec.UID, rec.UserID, rec.Name, rec.Privilege); err == nil {
			return nil
		} else if IsConnectivity(err) {
			return err
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: last rejection: %v", ErrSignatureMismatch, lastErr)
	}
	return ErrSignatureMismatch
}
