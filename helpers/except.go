// Except.go: Contains functions to make handling panics and platform errors less PITA

package helpers

import (
	"fmt"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// discord REST error codes
const (
	ErrCodeUnknownGuild       = 10004
	ErrCodeUnknownMember      = 10007
	ErrCodeUnknownMessage     = 10008
	ErrCodeUnknownRole        = 10011
	ErrCodeUnknownUser        = 10013
	ErrCodeUnknownBan         = 10026
	ErrCodeMissingAccess      = 50001
	ErrCodeMissingPermissions = 50013
)

// Recover recover()s, logs the panic and reports it to sentry
func Recover() {
	err := recover()
	if err != nil {
		if cache.HasLogger() {
			cache.GetLogger().WithField("module", "helpers").Errorf("recovered from panic: %#v", err)
		} else {
			fmt.Printf("%#v\n", err)
		}

		raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{})
	}
}

// RelaxLog logs $err if it is not nil, with an optional context message
func RelaxLog(err error, context string) {
	if err == nil {
		return
	}
	if context != "" {
		err = errors.Wrap(err, context)
	}
	if cache.HasLogger() {
		cache.GetLogger().WithField("module", "helpers").Error(err.Error())
	} else {
		fmt.Println(err.Error())
	}
}

// Go runs fn on its own goroutine, panics are recovered and reported
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

func restErrorCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	if errD, ok := errors.Cause(err).(*discordgo.RESTError); ok && errD.Message != nil {
		return errD.Message.Code, true
	}
	return 0, false
}

// IsTargetGone is true if discord does not know the targeted guild, member, user, ban, role or message anymore
func IsTargetGone(err error) bool {
	code, ok := restErrorCode(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeUnknownGuild, ErrCodeUnknownMember, ErrCodeUnknownMessage,
		ErrCodeUnknownRole, ErrCodeUnknownUser, ErrCodeUnknownBan:
		return true
	}
	return false
}

// IsMissingPermissions is true if the bot lacks access or permissions for the request
func IsMissingPermissions(err error) bool {
	code, ok := restErrorCode(err)
	return ok && (code == ErrCodeMissingPermissions || code == ErrCodeMissingAccess)
}
