package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	t.Run("CollapsesWhitespace", func(t *testing.T) {
		got := CleanText("el  alumno \n\t deberá   matricularse")
		assert.Equal(t, "el alumno deberá matricularse", got)
	})

	t.Run("RemovesPageFooters", func(t *testing.T) {
		got := CleanText("fin del capítulo Página 12 3/45 inicio del siguiente")
		assert.NotContains(t, got, "Página 12")
		assert.NotContains(t, got, "3/45")
	})

	t.Run("RemovesInstitutionalHeader", func(t *testing.T) {
		got := CleanText("Universidad de La Frontera - UFRO Reglamento de estudios")
		assert.NotContains(t, got, "Universidad de La Frontera")
		assert.Contains(t, got, "Reglamento de estudios")
	})

	t.Run("TagsHeadingsWithColon", func(t *testing.T) {
		got := CleanText("Artículo 15 El estudiante podrá apelar")
		assert.Contains(t, got, "Artículo 15:")

		got = CleanText("capítulo 2 De los beneficios")
		assert.Contains(t, got, "capítulo 2:")
	})

	t.Run("RestoresSentenceSpacing", func(t *testing.T) {
		got := CleanText("termina aquí.Comienza la siguiente")
		assert.Contains(t, got, "aquí. Comienza")
	})

	t.Run("DropsStrayCharacters", func(t *testing.T) {
		got := CleanText("texto § con ¤ símbolos * raros")
		assert.Equal(t, "texto con símbolos raros", got)
	})

	t.Run("KeepsAccentedLetters", func(t *testing.T) {
		got := CleanText("titulación, matrícula y apelación")
		assert.Equal(t, "titulación, matrícula y apelación", got)
	})
}
