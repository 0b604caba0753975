package sync

import (
	"log"
	"time"

	"liquid-tasks/internal/store"
)

// Device-level appearance and behavior settings. These live in the local
// store only and deliberately survive logout.

const (
	defaultTheme     = "dark"
	defaultAnimation = "flow"
)

var animationStyles = map[string]bool{
	"flow":  true,
	"pop":   true,
	"slide": true,
	"blur":  true,
}

func (c *Coordinator) Theme() string {
	if v, ok, err := c.local.Get(store.KeyTheme); err == nil && ok && v != "" {
		return v
	}
	return defaultTheme
}

func (c *Coordinator) SetTheme(theme string) error {
	if theme != "dark" && theme != "light" {
		theme = defaultTheme
	}
	return c.local.Set(store.KeyTheme, theme)
}

func (c *Coordinator) Animation() string {
	if v, ok, err := c.local.Get(store.KeyAnimation); err == nil && ok && animationStyles[v] {
		return v
	}
	return defaultAnimation
}

func (c *Coordinator) SetAnimation(style string) error {
	if !animationStyles[style] {
		style = defaultAnimation
	}
	return c.local.Set(store.KeyAnimation, style)
}

func (c *Coordinator) Haptics() bool            { return c.local.GetBool(store.KeyHaptics, true) }
func (c *Coordinator) SetHaptics(on bool) error { return c.local.SetBool(store.KeyHaptics, on) }

func (c *Coordinator) Sounds() bool            { return c.local.GetBool(store.KeySounds, true) }
func (c *Coordinator) SetSounds(on bool) error { return c.local.SetBool(store.KeySounds, on) }

func (c *Coordinator) GuestPhoto() string {
	v, _, _ := c.local.Get(store.KeyGuestPhoto)
	return v
}

func (c *Coordinator) SetGuestPhoto(dataURL string) error {
	return c.local.Set(store.KeyGuestPhoto, dataURL)
}

// Weather returns the cached weather payload, if any. The payload is opaque
// to the coordinator; handlers fill and read it.
func (c *Coordinator) Weather() (string, bool) {
	v, ok, err := c.local.Get(store.KeyWeather)
	if err != nil || v == "" {
		return "", false
	}
	return v, ok
}

func (c *Coordinator) SetWeather(payload string) error {
	return c.local.Set(store.KeyWeather, payload)
}

// Streak reports the consecutive-day usage count.
func (c *Coordinator) Streak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streak
}

// dailyCheckLocked bumps the usage streak once per calendar day: consecutive
// days increment it, a gap resets it to 1.
func (c *Coordinator) dailyCheckLocked() {
	today := time.Now().Format("2006-01-02")
	last, _, _ := c.local.Get(store.KeyLastDailyCheck)
	streak := c.local.GetInt(store.KeyStreak, 0)

	switch last {
	case today:
		// Already counted today.
	case time.Now().AddDate(0, 0, -1).Format("2006-01-02"):
		streak++
	default:
		streak = 1
	}
	c.streak = streak

	if last != today {
		if err := c.local.Set(store.KeyLastDailyCheck, today); err != nil {
			log.Printf("⚠️  Failed to record daily check: %v", err)
		}
		if err := c.local.SetInt(store.KeyStreak, streak); err != nil {
			log.Printf("⚠️  Failed to persist streak: %v", err)
		}
	}
}
