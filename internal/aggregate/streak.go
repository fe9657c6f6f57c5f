package aggregate

import (
	"fmt"

	"gota/internal/core"
)

// StreakDays is the width of the registration window, today inclusive.
const StreakDays = 10

type DayMark struct {
	Date    core.Date `json:"date"`
	Active  bool      `json:"active"`
	IsToday bool      `json:"is_today"`
}

type Streak struct {
	Days   []DayMark `json:"days"`
	Streak int       `json:"streak"`
	Active int       `json:"active"`
	Text   string    `json:"text"`
}

// ComputeStreak marks which of the last StreakDays days have at least one
// expense and counts consecutive active days walking back from today. An
// inactive today yields 0; it does not wait for the day to end.
func ComputeStreak(dates []core.Date, today core.Date) Streak {
	active := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		active[d.String()] = struct{}{}
	}

	s := Streak{Days: make([]DayMark, StreakDays)}
	for i := 0; i < StreakDays; i++ {
		d := today.AddDays(i - (StreakDays - 1))
		_, ok := active[d.String()]
		s.Days[i] = DayMark{Date: d, Active: ok, IsToday: i == StreakDays-1}
		if ok {
			s.Active++
		}
	}
	for i := StreakDays - 1; i >= 0 && s.Days[i].Active; i-- {
		s.Streak++
	}
	s.Text = streakText(s.Streak, s.Active)
	return s
}

func streakText(streak, active int) string {
	switch {
	case streak >= 3:
		return fmt.Sprintf("%d días seguidos · %d de %d", streak, active, StreakDays)
	case active > 0 && streak > 0:
		return fmt.Sprintf("%d de %d · racha %d", active, StreakDays, streak)
	case active > 0:
		return fmt.Sprintf("%d de %d", active, StreakDays)
	default:
		return "Empezá tu racha hoy"
	}
}
