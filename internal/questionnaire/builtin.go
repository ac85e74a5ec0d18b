package questionnaire

import "sort"

var builtin = map[ID]*Definition{
	PSS14: {
		ID:   PSS14,
		Name: "PSS-14 (Escala de Estrés Percibido)",
		Description: "Escala de 14 ítems que mide cuán impredecible, incontrolable y sobrecargada " +
			"has percibido tu vida durante el último mes.",
		Duration: "Unos 5 minutos: 14 preguntas con 5 opciones de respuesta.",
		Purpose: "Orientarte sobre tu nivel de estrés percibido (BAJO, MODERADO o ALTO). " +
			"No es un diagnóstico clínico.",
		Questions: []string{
			"1) En el último mes, ¿con qué frecuencia has estado afectado por algo que ha ocurrido inesperadamente?",
			"2) En el último mes, ¿con qué frecuencia te has sentido incapaz de controlar las cosas importantes de tu vida?",
			"3) En el último mes, ¿con qué frecuencia te has sentido nervioso o estresado?",
			"4) En el último mes, ¿con qué frecuencia has manejado con éxito los pequeños problemas irritantes de la vida?",
			"5) En el último mes, ¿con qué frecuencia has sentido que has afrontado efectivamente los cambios importantes que han estado ocurriendo en tu vida?",
			"6) En el último mes, ¿con qué frecuencia has estado seguro de tu capacidad para manejar tus problemas personales?",
			"7) En el último mes, ¿con qué frecuencia has sentido que las cosas te van bien?",
			"8) En el último mes, ¿con qué frecuencia has sentido que no podías afrontar todas las cosas que tenías que hacer?",
			"9) En el último mes, ¿con qué frecuencia has podido controlar las dificultades de tu vida?",
			"10) En el último mes, ¿con qué frecuencia has sentido que tenías todo bajo control?",
			"11) En el último mes, ¿con qué frecuencia has estado enfadado porque las cosas que te han ocurrido estaban fuera de tu control?",
			"12) En el último mes, ¿con qué frecuencia has pensado sobre las cosas que te quedan por hacer?",
			"13) En el último mes, ¿con qué frecuencia has podido controlar la forma de pasar el tiempo?",
			"14) En el último mes, ¿con qué frecuencia has sentido que las dificultades se acumulan tanto que no puedes superarlas?",
		},
		Scale: []Option{
			{Value: 0, Label: "Nunca"},
			{Value: 1, Label: "Casi nunca"},
			{Value: 2, Label: "De vez en cuando"},
			{Value: 3, Label: "A menudo"},
			{Value: 4, Label: "Muy a menudo"},
		},
		Reversed: []int{4, 5, 6, 7, 9, 10, 13},
		Bands: []Band{
			{Min: 0, Max: 19, Level: LevelLow},
			{Min: 20, Max: 25, Level: LevelModerate},
			{Min: 26, Max: 56, Level: LevelHigh},
		},
		MaxTotal: 56,
		OneBased: true,
		Keywords: []string{"pss", "14", "estres percibido", "escala de estres"},
		Phrases: map[int][]string{
			0: {"nunca", "jamas", "en ningun momento"},
			1: {"casi nunca", "rara vez", "pocas veces"},
			2: {"de vez en cuando", "a veces", "algunas veces", "ocasionalmente"},
			3: {"a menudo", "con frecuencia", "frecuentemente", "casi siempre", "muchas veces"},
			4: {"muy a menudo", "muy frecuentemente", "siempre", "todo el tiempo", "constantemente"},
		},
	},
	Fisio: {
		ID:   Fisio,
		Name: "Test de análisis fisiológico",
		Description: "Cinco preguntas breves sobre señales corporales del estrés: sueño, tensión, " +
			"energía y molestias físicas.",
		Duration: "Unos 2 minutos: 5 preguntas con 4 opciones de respuesta.",
		Purpose: "Detectar si tu cuerpo está mostrando señales de estrés. " +
			"Es orientativo y no sustituye una valoración médica.",
		Questions: []string{
			"1) En las últimas dos semanas, ¿has tenido dificultades para dormir o descansar bien?",
			"2) ¿Has notado tensión muscular en cuello, hombros o mandíbula?",
			"3) ¿Te has sentido con poca energía o fatiga durante el día?",
			"4) ¿Has tenido molestias digestivas o dolores de cabeza?",
			"5) ¿Has notado el corazón acelerado o la respiración agitada sin hacer esfuerzo?",
		},
		Scale: []Option{
			{Value: 0, Label: "Nada"},
			{Value: 1, Label: "Un poco"},
			{Value: 2, Label: "Bastante"},
			{Value: 3, Label: "Mucho"},
		},
		Bands: []Band{
			{Min: 0, Max: 4, Level: LevelLow},
			{Min: 5, Max: 9, Level: LevelModerate},
			{Min: 10, Max: 15, Level: LevelHigh},
		},
		MaxTotal: 15,
		// "fisio" is also the payload of the test choice buttons
		Keywords: []string{"fisiolog", "sintomas", "5 items", "test fisico", "corporal", "fisio"},
		Phrases: map[int][]string{
			0: {"nada", "nunca", "ninguno", "en absoluto"},
			1: {"un poco", "leve", "poco", "ligeramente"},
			2: {"bastante", "moderado", "a menudo", "regular"},
			3: {"mucho", "muchisimo", "siempre", "demasiado"},
		},
	},
}

// Lookup returns the built-in definition for id
func Lookup(id ID) (*Definition, bool) {
	d, ok := builtin[id]
	return d, ok
}

// All returns every built-in definition ordered by id, pss14 first
func All() []*Definition {
	out := make([]*Definition, 0, len(builtin))
	for _, d := range builtin {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return order(out[i].ID) < order(out[j].ID)
	})
	return out
}

func order(id ID) int {
	switch id {
	case PSS14:
		return 0
	case Fisio:
		return 1
	default:
		return 2
	}
}
