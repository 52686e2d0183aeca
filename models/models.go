package models

import (
	"fmt"
	"time"
)

type Dimension string

const (
	Mind   Dimension = "Mente"
	Body   Dimension = "Cuerpo"
	Spirit Dimension = "Espíritu"
)

// Dimensions is the canonical order, also used for tie-breaking.
var Dimensions = []Dimension{Mind, Body, Spirit}

func (d Dimension) Valid() bool {
	return d == Mind || d == Body || d == Spirit
}

type HabitStatus string

const (
	InProgress HabitStatus = "in_progress"
	Completed  HabitStatus = "completed"
	Deleted    HabitStatus = "deleted"
)

func (s HabitStatus) Valid() bool {
	return s == InProgress || s == Completed || s == Deleted
}

// Passport statuses are stored in Spanish, as shown to the user.
type PassportStatus string

const (
	PassportInProgress PassportStatus = "En proceso"
	PassportCompleted  PassportStatus = "Cumplido"
	PassportDeleted    PassportStatus = "Eliminado"
)

const (
	MinScore = 0
	MaxScore = 3
)

type UserProfile struct {
	Name      string `json:"name"`
	HasPin    bool   `json:"hasPin"`
	Level     string `json:"level"`
	Streak    int    `json:"streak"`
	Medals    int    `json:"medals"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type AssessmentArea struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Dimension   Dimension `json:"dimension"`
	Score       int       `json:"score"`
}

type MasterHabitEntry struct {
	Name        string    `json:"name" yaml:"name"`
	Dimension   Dimension `json:"dimension" yaml:"dimension"`
	Score       int       `json:"score" yaml:"score"`
	Description string    `json:"description" yaml:"description"`
}

type Habit struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Dimension    Dimension   `json:"dimension"`
	SubDimension string      `json:"subDimension"`
	Status       HabitStatus `json:"status"`
	Week         int         `json:"week"`
	IsDaily      bool        `json:"isDaily"`
	DateAdded    time.Time   `json:"dateAdded"`
}

type DailyTask struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Dimension Dimension `json:"dimension"`
	Completed bool      `json:"completed"`
}

type PassportEntry struct {
	ID          string         `json:"id"`
	Dimension   Dimension      `json:"dimension"`
	SubCategory string         `json:"subCategory"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      PassportStatus `json:"status"`
	Week        string         `json:"week"`
	Icon        string         `json:"icon"`
	DateAdded   time.Time      `json:"dateAdded"`
}

// WeekLabel is the passport tag for a week number.
func WeekLabel(n int) string {
	return fmt.Sprintf("Semana %d", n)
}

// Days of the week in plan order, Monday first.
var Days = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

type DayPlan struct {
	Tasks       []DailyTask `json:"tasks"`
	Reflections string      `json:"reflections"`
}

// WeekData is the per-day breakdown cached under daily_tasks_week_{N}.
type WeekData map[string]DayPlan
