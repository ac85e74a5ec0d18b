package router

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
)

// Greeting is the first assistant message of a manual session
const Greeting = "Hola, soy StressGuard. Estoy aquí para escucharte. ¿Cómo te sientes hoy?"

// AlertGreeting opens a session started by a biometric stress alert
const AlertGreeting = "⚠️ He detectado una señal de estrés en tus sensores biométricos. " +
	"¿Cómo te encuentras en este momento? Estoy aquí para ayudarte."

// CancelledText acknowledges a questionnaire stopped before its last answer
const CancelledText = "Test cancelado. Podemos seguir conversando cuando quieras."

const (
	farewellText  = "Hasta pronto. Cuídate mucho."
	resetText     = "He borrado la memoria de nuestra conversación. Empecemos de nuevo: ¿cómo te sientes?"
	handoffText   = "Abriendo el evaluador de tablas de verdad."
	offerText     = "Puedo ofrecerte un test breve para valorar tu nivel de estrés. ¿Quieres hacer alguno?"
	menuText      = "¡Perfecto! Elige uno de los dos tests: el PSS-14 (estrés percibido) o el test fisiológico de 5 preguntas."
	noGeneratorTx = "El asistente de conversación no está disponible en este momento."
)

// NoticeText announces how a free-text answer was read
func NoticeText(label string) string {
	return fmt.Sprintf("Interpreté tu respuesta como: «%s»", label)
}

// AmbiguousText asks the user to pick between the two closest readings
func AmbiguousText(a, b string) string {
	return fmt.Sprintf("No estoy seguro de tu respuesta. ¿Quisiste decir «%s» o «%s»?", a, b)
}

func generatorErrorText(err error) string {
	return fmt.Sprintf("No pude obtener respuesta del modelo de lenguaje (%s).", briefError(err))
}

// OutOfRangeText rejects a number outside the answer scale
func OutOfRangeText(value, min, max int) string {
	return fmt.Sprintf("El valor %d está fuera de la escala. Responde con un número entre %d y %d o con una de las opciones.",
		value, min, max)
}

func infoText(d *questionnaire.Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", d.Name)
	fmt.Fprintf(&b, "%s\n", d.Description)
	fmt.Fprintf(&b, "Duración: %s\n", d.Duration)
	fmt.Fprintf(&b, "Para qué sirve: %s\n", d.Purpose)
	fmt.Fprintf(&b, "Número de preguntas: %d.", len(d.Questions))
	return b.String()
}

// ResultText summarizes a scored questionnaire with level advice
func ResultText(r *questionnaire.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Has completado el test %s.\n", r.Name)
	fmt.Fprintf(&b, "Puntuación: %d de %d. Nivel: %s.\n", r.Total, r.MaxTotal, r.Level.Spanish())
	b.WriteString(levelAdvice(r.Level))
	return b.String()
}

func levelAdvice(l questionnaire.Level) string {
	switch l {
	case questionnaire.LevelLow:
		return "Tu nivel es bajo. Sigue cuidando tu descanso y tus momentos de desconexión."
	case questionnaire.LevelModerate:
		return "Conviene que prestes atención a lo que te genera tensión y pruebes técnicas de relajación o respiración."
	default:
		return "Tu nivel es alto. Si este malestar se mantiene, te recomiendo hablar con un profesional de la salud."
	}
}

func testChoices() []Choice {
	return []Choice{
		{Label: "PSS-14 (estrés percibido)", Payload: string(questionnaire.PSS14)},
		{Label: "Test fisiológico (5 preguntas)", Payload: string(questionnaire.Fisio)},
	}
}

func scaleChoices(d *questionnaire.Definition) []Choice {
	out := make([]Choice, 0, len(d.Scale))
	for _, o := range d.Scale {
		out = append(out, Choice{Label: o.Label, Payload: fmt.Sprint(o.Value)})
	}
	return out
}
