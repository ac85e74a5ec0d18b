package router

import "github.com/felixgeelhaar/stressguard/internal/textmatch"

// Phrase sets are matched against folded text (lower-case, no accents)

var exitWords = []string{"salir", "exit", "quit"}

var infoMarkers = []string{
	"que es", "de que trata", "tiempo", "cuanto dura", "para que",
	"cuantas preguntas", "en que consiste",
}

var cancelWords = []string{"cancelar", "cancel", "detener", "parar", "salir del test"}

var resetWords = []string{"borrar memoria", "reiniciar", "reset", "limpiar"}

const truthTableWord = "tablaverdad"

var affirmatives = []string{"si", "claro", "ok", "vale", "dale", "bueno", "de acuerdo", "por supuesto"}

var distressWords = []string{
	"estres", "mal", "ansiedad", "triste", "depre", "ayuda", "cansad", "dolor",
	"no puedo", "agobiad", "nervios", "test", "evalu", "sintoma",
}

var suggestionWords = []string{"test", "te sugiero", "pss", "fisiolog", "evaluacion", "cuestionario"}

// IsExitCommand reports whether text asks to leave the conversation
func IsExitCommand(text string) bool {
	return textmatch.EqualsAny(textmatch.Fold(text), exitWords)
}

// IsCancelCommand reports whether text asks to stop a running questionnaire
func IsCancelCommand(text string) bool {
	_, ok := textmatch.ContainsAny(textmatch.Fold(text), cancelWords)
	return ok
}
