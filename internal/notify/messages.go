package notify

import (
	"fmt"
	"strings"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

func mapsLink(loc *domain.Location) string {
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", loc.Latitude, loc.Longitude)
}

// alertSubject is the email subject for an escalated alert.
func alertSubject(u *domain.User, test bool) string {
	if test {
		return fmt.Sprintf("Still Here Test Alert: %s", u.Name)
	}
	return fmt.Sprintf("Still Here Alert: %s hasn't checked in", u.Name)
}

func reminderSubject(u *domain.User) string {
	return fmt.Sprintf("Still Here Reminder: %s hasn't checked in today", u.Name)
}

// alertBody builds the plain-text alert message sent to a contact.
func alertBody(u *domain.User, c domain.EmergencyContact, opts AlertOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.Name)
	if opts.Test {
		fmt.Fprintf(&b, "This is a test alert from Still Here. %s has set you as their emergency contact.\n", u.Name)
	} else {
		fmt.Fprintf(&b, "%s hasn't checked in on Still Here for over 48 hours. You may want to reach out to make sure they're okay.\n", u.Name)
	}
	if u.PetName != "" && !opts.Test {
		fmt.Fprintf(&b, "\nPet: %s %s", u.PetEmoji, u.PetName)
		if u.PetNotes != "" {
			fmt.Fprintf(&b, " - %s", u.PetNotes)
		}
		b.WriteString("\n")
	}
	if opts.Location != nil {
		fmt.Fprintf(&b, "\nLast known location: %s\n", mapsLink(opts.Location))
	}
	b.WriteString("\nStill Here is a daily check-in app for peace of mind.\n")
	return b.String()
}

func reminderBody(u *domain.User, c domain.EmergencyContact) string {
	return fmt.Sprintf(
		"Hi %s,\n\n%s hasn't checked in on Still Here today. This is just a heads up - we'll send a full alert if they don't check in within the next 24 hours.\n\nStill Here is a daily check-in app for peace of mind.\n",
		c.Name, u.Name)
}

func activityAlertSubject(u *domain.User, a *domain.Activity) string {
	return fmt.Sprintf("Still Here Activity Alert: %s hasn't returned", u.Name)
}

func activityAlertBody(u *domain.User, c domain.EmergencyContact, a *domain.Activity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.Name)
	label := a.Label
	if label == "" {
		label = a.Type
	}
	fmt.Fprintf(&b, "%s started an activity (%s) expected to end at %s and hasn't confirmed they're back safe.\n",
		u.Name, label, a.ExpectedEndAt.In(u.Location()).Format("15:04 Jan 2"))
	if a.Details != "" {
		fmt.Fprintf(&b, "\nDetails: %s\n", a.Details)
	}
	if a.ShareLocation && a.Latitude != nil && a.Longitude != nil {
		fmt.Fprintf(&b, "\nStarting location: %s\n",
			mapsLink(&domain.Location{Latitude: *a.Latitude, Longitude: *a.Longitude}))
	}
	b.WriteString("\nStill Here is a daily check-in app for peace of mind.\n")
	return b.String()
}

// smsAlertBody builds the SMS alert text, kept short for the channel.
func smsAlertBody(u *domain.User, opts AlertOptions) string {
	var b strings.Builder
	if opts.Test {
		fmt.Fprintf(&b, "[TEST] Still Here Alert: This is a test alert. %s has set you as their emergency contact.", u.Name)
	} else {
		fmt.Fprintf(&b, "Still Here Alert: %s hasn't checked in for over 48 hours. You may want to reach out to make sure they're okay.", u.Name)
	}
	if u.PetName != "" && !opts.Test {
		fmt.Fprintf(&b, "\n\nPet: %s %s", u.PetEmoji, u.PetName)
		if u.PetNotes != "" {
			fmt.Fprintf(&b, " - %s", u.PetNotes)
		}
	}
	if opts.Location != nil {
		fmt.Fprintf(&b, "\n\nLast known location: %s", mapsLink(opts.Location))
	}
	return b.String()
}

// htmlBody wraps a plain-text message in a minimal HTML shell so email
// clients render line breaks.
func htmlBody(text string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
	return "<html><body><p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p></body></html>"
}
