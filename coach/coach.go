// Package coach produces motivational text: daily tips, quotes, an
// assessment summary and free-form answers. Every call degrades to the
// bundled Spanish texts when no model is configured or the model fails.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"bienestar/logger"
	"bienestar/models"
)

type Coach interface {
	Tip(ctx context.Context, userName string, focus models.Dimension) string
	Quote(ctx context.Context) string
	AnalyzeAssessment(ctx context.Context, areas []models.AssessmentArea) string
	Ask(ctx context.Context, query string) string
}

// Generator is a single text completion call.
type Generator interface {
	Generate(ctx context.Context, prompt, system string, search bool) (string, error)
}

var offlineTips = []string{
	"Respira profundamente tres veces y conecta con tu interior.",
	"Bebe un vaso de agua antes de tu próxima comida.",
	"Tómate 5 minutos para estirar tu cuerpo.",
	"Agradece por tres cosas pequeñas hoy.",
	"La consistencia es más importante que la intensidad.",
	"Escucha a tu cuerpo, él sabe lo que necesita.",
	"Desconecta de las pantallas una hora antes de dormir.",
}

var offlineQuotes = []string{
	"La constancia es el puente entre tus metas y tus logros.",
	"Cree que puedes y ya estarás a medio camino.",
	"El éxito es la suma de pequeños esfuerzos repetidos día tras día.",
	"No cuentes los días, haz que los días cuenten.",
	"La única forma de hacer un gran trabajo es amar lo que haces.",
	"Tu bienestar es una prioridad, no un lujo.",
	"Cada paso cuenta, por pequeño que sea.",
}

const (
	offlineAnalysis = "Has dado el primer paso hacia el bienestar. Enfócate en mejorar tu descanso esta semana."
	failedAnalysis  = "Gran trabajo completando tu evaluación. Revisa tus resultados para ver dónde puedes mejorar."
	offlineAnswer   = "Sin conexión con el asistente. Por favor verifica la configuración para hablar con Aura."
	emptyAnswer     = "Lo siento, no puedo conectarme con mi sabiduría interior en este momento. Intenta de nuevo más tarde."
	failedAnswer    = "Hubo un error al procesar tu consulta."

	coachPersona = "You are a helpful, empathetic wellness coach named 'Aura'. Answer briefly and supportively in Spanish."
)

// Service implements Coach over an optional Generator.
type Service struct {
	gen     Generator
	log     *logger.Logger
	timeout time.Duration
	pick    func(n int) int
}

type Option func(*Service)

// WithPicker replaces the random choice of offline texts.
func WithPicker(pick func(n int) int) Option {
	return func(s *Service) { s.pick = pick }
}

// New returns a coach. A nil gen gives an offline coach.
func New(gen Generator, timeout time.Duration, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &Service{gen: gen, log: log.With("component", "coach"), timeout: timeout, pick: rand.IntN}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Online reports whether a model is configured.
func (s *Service) Online() bool { return s.gen != nil }

func (s *Service) offline(list []string) string {
	return list[s.pick(len(list))]
}

// generate returns the trimmed model answer, or "" and the error.
func (s *Service) generate(ctx context.Context, op, prompt, system string, search bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, prompt, system, search)
	if err != nil {
		s.log.Warn("coach request failed", "op", op, "error", err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Service) Tip(ctx context.Context, userName string, focus models.Dimension) string {
	if !s.Online() {
		return s.offline(offlineTips)
	}
	prompt := fmt.Sprintf("Generate a short, inspiring daily wellness tip for %s, focusing on %s. Keep it under 20 words. Language: Spanish.", userName, focus)
	if text, err := s.generate(ctx, "tip", prompt, "", false); err == nil && text != "" {
		return text
	}
	return s.offline(offlineTips)
}

func (s *Service) Quote(ctx context.Context) string {
	if !s.Online() {
		return s.offline(offlineQuotes)
	}
	prompt := "Generate a short, inspiring benevolent quote about perseverance, wellness, or mindfulness. Keep it under 25 words. Language: Spanish. Just the quote text."
	if text, err := s.generate(ctx, "quote", prompt, "", false); err == nil && text != "" {
		return text
	}
	return s.offline(offlineQuotes)
}

type scoreLine struct {
	Area      string           `json:"area"`
	Dimension models.Dimension `json:"dimension"`
	Score     int              `json:"score"`
}

func (s *Service) AnalyzeAssessment(ctx context.Context, areas []models.AssessmentArea) string {
	if !s.Online() {
		return offlineAnalysis
	}
	lines := make([]scoreLine, 0, len(areas))
	for _, a := range areas {
		lines = append(lines, scoreLine{Area: a.Name, Dimension: a.Dimension, Score: a.Score})
	}
	scores, _ := json.Marshal(lines)

	prompt := fmt.Sprintf("Analyze these wellness scores (1-3 scale): %s. Provide a brief 2-sentence encouraging summary and one key area to focus on. Language: Spanish.", scores)
	text, err := s.generate(ctx, "analysis", prompt, "", false)
	switch {
	case err != nil:
		return failedAnalysis
	case text == "":
		return offlineAnalysis
	}
	return text
}

func (s *Service) Ask(ctx context.Context, query string) string {
	if !s.Online() {
		return offlineAnswer
	}
	text, err := s.generate(ctx, "ask", query, coachPersona, true)
	switch {
	case err != nil:
		return failedAnswer
	case text == "":
		return emptyAnswer
	}
	return text
}
