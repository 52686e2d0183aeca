package engine

import (
	"regexp"
	"strconv"

	"bienestar/models"
	"bienestar/store"
)

type levelStep struct {
	maxWeek int
	title   string
}

var levels = []levelStep{
	{5, "🌱 Semilla"},
	{10, "🌿 Brote"},
	{15, "🔍 Buscador"},
	{20, "👣 Caminante"},
	{30, "🧗 Escalador"},
	{40, "⚔️ Guerrero"},
	{50, "🛡️ Guardián"},
	{60, "🧘 Maestro"},
	{75, "🦉 Sabio"},
}

// LevelTitle names the level reached after weekCount weeks.
func LevelTitle(weekCount int) string {
	for _, l := range levels {
		if weekCount <= l.maxWeek {
			return l.title
		}
	}
	return "👑 Leyenda"
}

func completedEntries(passport []models.PassportEntry) []models.PassportEntry {
	var out []models.PassportEntry
	for _, e := range passport {
		if e.Status == models.PassportCompleted {
			out = append(out, e)
		}
	}
	return out
}

// Medals counts completed passport rows.
func Medals(passport []models.PassportEntry) int {
	return len(completedEntries(passport))
}

type Badge struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

type Milestone struct {
	Target  int    `json:"target"`
	Title   string `json:"title"`
	Percent int    `json:"percent"`
}

var milestones = []struct {
	target int
	title  string
}{
	{10, "Iniciado"},
	{25, "Aprendiz"},
	{50, "Caminante"},
	{100, "Maestro"},
}

type Achievements struct {
	Medals         int                      `json:"medals"`
	Streak         int                      `json:"streak"`
	WeekCount      int                      `json:"weekCount"`
	Level          string                   `json:"level"`
	Badges         []Badge                  `json:"badges"`
	NextMilestone  Milestone                `json:"nextMilestone"`
	RecentActivity []models.PassportEntry   `json:"recentActivity"`
	ByDimension    map[models.Dimension]int `json:"byDimension"`
}

// ComputeAchievements derives badges and milestones from the passport and counters.
func ComputeAchievements(passport []models.PassportEntry, streak, weekCount int) Achievements {
	done := completedEntries(passport)
	byDim := make(map[models.Dimension]int, len(models.Dimensions))
	for _, e := range done {
		byDim[e.Dimension]++
	}
	total := len(done)

	badges := []Badge{
		{ID: "first_step", Title: "Primer Paso", Description: "Completa tu primer hábito", Unlocked: total >= 1},
		{ID: "mind_awake", Title: "Mente Despierta", Description: "Completa 5 hábitos de Mente", Unlocked: byDim[models.Mind] >= 5},
		{ID: "body_active", Title: "Cuerpo Activo", Description: "Completa 5 hábitos de Cuerpo", Unlocked: byDim[models.Body] >= 5},
		{ID: "spirit_connected", Title: "Espíritu Conectado", Description: "Completa 5 hábitos de Espíritu", Unlocked: byDim[models.Spirit] >= 5},
		{ID: "consistency", Title: "Constancia Pura", Description: "Mantén una racha de 4 semanas", Unlocked: streak >= 4},
		{ID: "collector", Title: "Coleccionista", Description: "Completa 20 hábitos", Unlocked: total >= 20},
		{ID: "legend", Title: "Leyenda", Description: "Completa 50 hábitos", Unlocked: total >= 50},
		{ID: "veteran", Title: "Veterano", Description: "Alcanza 10 semanas de práctica", Unlocked: weekCount >= 10},
	}

	last := milestones[len(milestones)-1]
	next := Milestone{Target: last.target, Title: last.title}
	for _, m := range milestones {
		if total < m.target {
			next = Milestone{Target: m.target, Title: m.title}
			break
		}
	}
	next.Percent = min(100, percent(total, next.Target))

	recent := done
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}

	return Achievements{
		Medals:         total,
		Streak:         streak,
		WeekCount:      weekCount,
		Level:          LevelTitle(weekCount),
		Badges:         badges,
		NextMilestone:  next,
		RecentActivity: recent,
		ByDimension:    byDim,
	}
}

func (s *Service) Achievements() Achievements {
	return ComputeAchievements(s.Passport(), s.Streak(), s.WeekCount())
}

var weekLabelRe = regexp.MustCompile(`Semana (\d+)`)

// WeekNumber parses a passport week label, defaulting to 1.
func WeekNumber(label string) int {
	m := weekLabelRe.FindStringSubmatch(label)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

type WeekStats struct {
	Week   int `json:"week"`
	Global int `json:"global"`
	Mind   int `json:"mind"`
	Body   int `json:"body"`
	Spirit int `json:"spirit"`
}

type KPI struct {
	Percent int `json:"percent"`
	Trend   int `json:"trend"`
}

type Statistics struct {
	History       []WeekStats `json:"history"`
	Mind          KPI         `json:"mind"`
	Body          KPI         `json:"body"`
	Spirit        KPI         `json:"spirit"`
	GlobalAverage int         `json:"globalAverage"`
}

func completionRate(entries []models.PassportEntry, dim models.Dimension) int {
	done, total := 0, 0
	for _, e := range entries {
		if dim != "" && e.Dimension != dim {
			continue
		}
		total++
		if e.Status == models.PassportCompleted {
			done++
		}
	}
	return percent(done, total)
}

// ComputeStatistics groups the passport by week, filling any missing week from
// week 1 up to the latest.
func ComputeStatistics(passport []models.PassportEntry) Statistics {
	byWeek := make(map[int][]models.PassportEntry)
	maxWeek := 0
	for _, e := range passport {
		n := WeekNumber(e.Week)
		maxWeek = max(maxWeek, n)
		byWeek[n] = append(byWeek[n], e)
	}

	var st Statistics
	for i := 1; i <= maxWeek; i++ {
		rows := byWeek[i]
		st.History = append(st.History, WeekStats{
			Week:   i,
			Global: completionRate(rows, ""),
			Mind:   completionRate(rows, models.Mind),
			Body:   completionRate(rows, models.Body),
			Spirit: completionRate(rows, models.Spirit),
		})
	}

	var cur, prev WeekStats
	if n := len(st.History); n > 0 {
		cur = st.History[n-1]
		if n > 1 {
			prev = st.History[n-2]
		}
	}
	st.Mind = KPI{Percent: cur.Mind, Trend: cur.Mind - prev.Mind}
	st.Body = KPI{Percent: cur.Body, Trend: cur.Body - prev.Body}
	st.Spirit = KPI{Percent: cur.Spirit, Trend: cur.Spirit - prev.Spirit}
	st.GlobalAverage = cur.Global
	return st
}

func (s *Service) Statistics() Statistics {
	return ComputeStatistics(s.Passport())
}

type PassportSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Deleted    int `json:"deleted"`
}

// FilterPassport keeps rows matching a dimension and status; empty values match all.
func FilterPassport(passport []models.PassportEntry, dim models.Dimension, status models.PassportStatus) ([]models.PassportEntry, PassportSummary) {
	var out []models.PassportEntry
	var sum PassportSummary
	for _, e := range passport {
		if dim != "" && e.Dimension != dim {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
		sum.Total++
		switch e.Status {
		case models.PassportCompleted:
			sum.Completed++
		case models.PassportDeleted:
			sum.Deleted++
		default:
			sum.InProgress++
		}
	}
	return out, sum
}

// Profile returns the stored user with level, streak and medals recomputed.
func (s *Service) Profile() (models.UserProfile, bool) {
	u, ok := store.LoadAs[models.UserProfile](s.sess, KeyUser)
	if !ok {
		return models.UserProfile{}, false
	}
	u.Level = LevelTitle(s.WeekCount())
	u.Streak = s.Streak()
	u.Medals = Medals(s.Passport())
	return u, true
}

// UpdateProfile renames the user or changes the avatar.
func (s *Service) UpdateProfile(name, avatarURL string) (models.UserProfile, error) {
	var u models.UserProfile
	err := s.atomic(func() error {
		var ok bool
		u, ok = s.Profile()
		if !ok {
			return ErrNoProfile
		}
		if name != "" {
			u.Name = name
		}
		if avatarURL != "" {
			u.AvatarURL = avatarURL
		}
		s.sess.Set(KeyUser, u)
		return nil
	})
	return u, err
}
