package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shelfcheck/backend/internal/domain"
)

// Column widths of the fixed-width result tables
const (
	productColumnWidth = 45
	productNameMax     = 44

	// DefaultMaxMessageLength keeps replies under common chat message limits.
	DefaultMaxMessageLength = 3900
)

// Summarize deduplicates results by display key, keeping the first, and
// counts them by status. Results without a usable key are dropped.
func Summarize(results []domain.ValidationResult) domain.Summary {
	summary := domain.Summary{
		Results: make([]domain.ValidationResult, 0, len(results)),
		Counts:  make(map[domain.Status]int),
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		key := displayName(r)
		if IsSentinelName(key) || seen[key] {
			continue
		}
		seen[key] = true

		summary.Results = append(summary.Results, r)
		summary.Counts[r.Status]++
		if r.Failed() {
			summary.Failed++
		}
	}
	summary.Total = len(summary.Results)
	return summary
}

// displayName is the catalog name when matched, otherwise the shelf name.
func displayName(r domain.ValidationResult) string {
	if r.MatchedName != nil && CanonicalName(*r.MatchedName) != "" {
		return CanonicalName(*r.MatchedName)
	}
	return CanonicalName(r.SourceName)
}

// FormatValidationTable renders a summary as a chat message.
func FormatValidationTable(summary domain.Summary, storeID int) string {
	if summary.Total == 0 {
		return "⚠️ No se encontraron productos válidos en la imagen."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Resultados de validación - Tienda %d*\n\n", storeID)
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%-4s %s %12s %15s %11s\n", "#", padRight("PRODUCTO", productColumnWidth), "PRECIO FOTO", "PRECIO SISTEMA", "VALIDACION")
	b.WriteString(strings.Repeat("-", 92) + "\n")

	for i, r := range summary.Results {
		fmt.Fprintf(&b, "%-4d %s %12s %15s %11s\n",
			i+1,
			padRight(truncateRunes(displayName(r), productNameMax), productColumnWidth),
			formatPrice(r.SourcePrice),
			formatPrice(r.MatchedPrice),
			r.Verdict.Symbol())
	}
	b.WriteString("```\n\n")

	fmt.Fprintf(&b, "*Resumen:* ✅ %d correctos | ❌ %d con diferencia | ⚠️ %d no encontrados | Total: %d productos",
		summary.Correct(), summary.WithDifference(), summary.Unresolved(), summary.Total)
	if summary.Failed > 0 {
		fmt.Fprintf(&b, "\n_%d productos no se pudieron consultar en el catálogo; intenta de nuevo._", summary.Failed)
	}
	return b.String()
}

// FormatSearchResults renders catalog lookup matches as a chat message.
func FormatSearchResults(matches []domain.CatalogMatch, phrase string, storeID int) string {
	if len(matches) == 0 {
		return fmt.Sprintf("⚠️ No encontré *\"%s\"* en la tienda %d.\nIntenta con otro nombre o verifica el número de tienda.", phrase, storeID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Resultados para *\"%s\"* en tienda *%d*:\n\n", phrase, storeID)
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%-4s %s %10s %10s\n", "#", padRight("PRODUCTO", productColumnWidth), "PRECIO", "SIMILITUD")
	b.WriteString(strings.Repeat("-", 75) + "\n")

	for i, m := range matches {
		fmt.Fprintf(&b, "%-4d %s %10s %10s\n",
			i+1,
			padRight(truncateRunes(m.Name, productNameMax), productColumnWidth),
			formatPrice(m.Price),
			fmt.Sprintf("%.0f%%", m.Score*100))
	}
	b.WriteString("```\n")
	fmt.Fprintf(&b, "\n_Se encontraron %d productos similares._", len(matches))
	return b.String()
}

// SplitMessage splits msg on line boundaries into parts no longer than limit
// characters. A single line longer than limit becomes its own part.
func SplitMessage(msg string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxMessageLength
	}
	if utf8.RuneCountInString(msg) <= limit {
		return []string{msg}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0
	for _, line := range strings.Split(msg, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen > 0 && currentLen+lineLen+1 > limit {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	if currentLen > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// HelpMessage is the reply to greetings and help requests.
func HelpMessage() string {
	return strings.Join([]string{
		"¡Hola! 👋 Soy tu asistente de validación de precios. ¿Qué puedo hacer por ti?",
		"",
		"🔍 *BÚSQUEDA EN CATÁLOGO*",
		"Busco productos en el catálogo de la tienda para verificar que los precios sean los correctos.",
		"",
		"*Ejemplos:*",
		"• _\"¿Cuánto cuesta la Harina en la tienda 100?\"_",
		"• _\"Busca el precio del Queso Panela en tienda 205\"_",
		"",
		"⚠️ *Importante:* Siempre indica el número de tienda, cada una tiene sus propios precios.",
		"",
		"📸 *VALIDACIÓN DE ESTANTES*",
		"Comparo los productos y precios leídos de una foto del estante contra el catálogo:",
		"• Identificación de productos y precios",
		"• Comparación con el catálogo de la tienda",
		"• Estado del producto (correcto/incorrecto)",
		"• Diferencia de precios si aplica",
		"",
		"¿En qué puedo ayudarte hoy? 😊",
	}, "\n")
}

// StoreRequiredMessage asks for a store number, using phrase in the example
// when one was recognized.
func StoreRequiredMessage(phrase string) string {
	if phrase == "" {
		return strings.Join([]string{
			"⚠️ *Por favor incluye el número de tienda en tu mensaje.*",
			"",
			"Ejemplos:",
			"• `Tienda 810`",
			"• `tienda: 810`",
			"• `#810`",
			"• O simplemente el número `810`",
		}, "\n")
	}
	return fmt.Sprintf("⚠️ Para buscar un producto necesito el número de tienda.\nEjemplo: `Tráeme el precio de %s de la tienda 810`", phrase)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// padRight pads by rune count so accented names keep columns aligned.
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
