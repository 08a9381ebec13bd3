// Package translate converts between financial events and remote calendar
// payloads. Both directions are pure: no I/O and no failure modes.
package translate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/finledger/calsync/internal/models"
)

// Private extended-property keys carried on remote events. They let a
// provider payload be traced back to its financial event without a mapping
// lookup.
const (
	PropEventID  = "finledgerEventId"
	PropCategory = "finledgerCategory"
	PropOrigin   = "finledgerOrigin"

	originValue = "finledger"
)

// defaultDuration is used when an event has no usable end time.
const defaultDuration = 30 * time.Minute

// amountMarker prefixes the amount line appended to remote descriptions.
const amountMarker = "Value:"

var amountPattern = regexp.MustCompile(`(?m)^Value:\s*(-?\d+(?:\.\d+)?)\s*$`)

// BackRef is the inline back-reference a remote event may carry.
type BackRef struct {
	InternalEventID string
	Origin          string
}

// ToRemote renders a financial event as a remote calendar event. The amount
// is embedded as a "Value: <amount>" line only when the user opted in.
func ToRemote(ev *models.FinancialEvent, settings *models.SyncSettings) *calendar.Event {
	description := ev.Description
	if settings.IncludeAmountsInDescription {
		if description != "" {
			description += "\n\n"
		}
		description += fmt.Sprintf("%s %.2f", amountMarker, ev.Amount)
	}

	private := map[string]string{
		PropEventID: ev.ID,
		PropOrigin:  originValue,
	}
	if ev.Category != nil && *ev.Category != "" {
		private[PropCategory] = *ev.Category
	}

	end := ev.EndTime
	if end.IsZero() || !end.After(ev.StartTime) {
		end = ev.StartTime.Add(defaultDuration)
	}

	return &calendar.Event{
		Summary:     ev.Title,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: ev.StartTime.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: private,
		},
	}
}

// ToInternal converts a remote calendar event into an internal draft plus
// the back-reference metadata, if the payload carries any. An amount marker
// in the description is extracted into the draft and stripped from the text;
// its absence leaves the amount unset.
func ToInternal(remote *calendar.Event) (models.EventDraft, BackRef) {
	draft := models.EventDraft{
		Title:     remote.Summary,
		StartTime: parseEventTime(remote.Start),
		EndTime:   parseEventTime(remote.End),
	}

	description := remote.Description
	if m := amountPattern.FindStringSubmatch(description); m != nil {
		if amount, err := strconv.ParseFloat(m[1], 64); err == nil {
			draft.Amount = &amount
		}
		description = strings.TrimSpace(amountPattern.ReplaceAllString(description, ""))
	}
	draft.Description = description

	var ref BackRef
	if remote.ExtendedProperties != nil && remote.ExtendedProperties.Private != nil {
		props := remote.ExtendedProperties.Private
		ref.InternalEventID = props[PropEventID]
		ref.Origin = props[PropOrigin]
		if c := props[PropCategory]; c != "" {
			draft.Category = &c
		}
	}
	return draft, ref
}

// RemoteUpdated parses the provider's last-modified timestamp, zero when
// absent or unparseable.
func RemoteUpdated(remote *calendar.Event) time.Time {
	if remote == nil || remote.Updated == "" {
		return time.Time{}
	}
	tm, err := time.Parse(time.RFC3339, remote.Updated)
	if err != nil {
		return time.Time{}
	}
	return tm
}

// parseEventTime handles timed and all-day payloads; unparseable input
// yields the zero time.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if tm, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return tm
		}
		return time.Time{}
	}
	if edt.Date != "" {
		if tm, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return tm
		}
	}
	return time.Time{}
}
