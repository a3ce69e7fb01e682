package notification

import (
	"fmt"
	"strings"
	"time"

	advisordomain "lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads/domain"
)

const (
	footer         = "_Inmueble Advisor Admin_"
	notAvailable   = "N/A"
	maxHistoryRows = 3
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
)

// EscapeMarkdown escapes the characters that break Telegram Markdown V1.
func EscapeMarkdown(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return notAvailable
	}
	return markdownEscaper.Replace(text)
}

var (
	weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	months   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// FormatAppointment renders "lunes 3 de marzo a las 10:30" in loc.
func FormatAppointment(at *time.Time, loc *time.Location) string {
	if at == nil || at.IsZero() {
		return "Por confirmar"
	}
	if loc == nil {
		loc = time.UTC
	}
	t := at.In(loc)
	return fmt.Sprintf("%s %d de %s a las %s",
		weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Format("15:04"))
}

// NewLeadMessage builds the admin alert for a freshly created lead. other
// holds earlier leads of the same client, newest first.
func NewLeadMessage(lead domain.Lead, other []domain.Lead, loc *time.Location) string {
	development := lead.DevelopmentName
	if strings.TrimSpace(development) == "" {
		development = lead.DevelopmentID
	}
	if strings.TrimSpace(development) == "" {
		development = "Desarrollo General"
	}

	var b strings.Builder
	b.WriteString("🔔 *Nuevo LEAD Reportado*\n\n")
	fmt.Fprintf(&b, "Interesado en *%s*\n\n", EscapeMarkdown(development))

	if lead.AppointmentAt != nil {
		b.WriteString("📅 *Cita Agendada:*\n")
		fmt.Fprintf(&b, "%s\n\n", FormatAppointment(lead.AppointmentAt, loc))
	}

	fmt.Fprintf(&b, "👤 *Cliente:* %s\n", EscapeMarkdown(orDefault(lead.Client.Name, "Posible Cliente")))
	fmt.Fprintf(&b, "📞 *Tel:* %s\n", EscapeMarkdown(orDefault(deref(lead.Client.Phone), "No especificado")))
	fmt.Fprintf(&b, "📧 *Email:* %s\n", EscapeMarkdown(orDefault(deref(lead.Client.Email), "No especificado")))

	history := make([]domain.Lead, 0, maxHistoryRows)
	for _, l := range other {
		if l.ID == lead.ID {
			continue
		}
		history = append(history, l)
		if len(history) == maxHistoryRows {
			break
		}
	}
	if len(history) > 0 {
		b.WriteString("\n📜 *Historial de Interés:*\n")
		for _, l := range history {
			name := orDefault(l.DevelopmentName, l.DevelopmentID)
			fmt.Fprintf(&b, "- %s (%s)\n", EscapeMarkdown(name), l.Status.Label())
		}
	}

	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

// NoCoverageMessage builds the admin alert for a lead nobody can take.
func NoCoverageMessage(e events.LeadEscalated) string {
	development := orDefault(e.DevelopmentName, e.DevelopmentID)

	var b strings.Builder
	b.WriteString("⚠️ *Lead sin asesor*\n\n")
	fmt.Fprintf(&b, "Ningún asesor activo vende *%s*.\n", EscapeMarkdown(development))
	fmt.Fprintf(&b, "👤 *Cliente:* %s\n", EscapeMarkdown(e.ClientName))
	fmt.Fprintf(&b, "🆔 *Lead:* %s\n\n", EscapeMarkdown(e.LeadID.String()))
	b.WriteString("Asignación manual requerida.\n\n")
	b.WriteString(footer)
	return b.String()
}

// NewUserMessage builds the admin alert for a freshly registered user.
func NewUserMessage(user advisordomain.Advisor) string {
	identifier := orDefault(user.DisplayName, orDefault(user.Email, "Usuario sin nombre"))

	var b strings.Builder
	b.WriteString("🚀 *Nuevo Usuario Registrado*\n\n")
	fmt.Fprintf(&b, "👤 *Nombre:* %s\n", EscapeMarkdown(identifier))
	fmt.Fprintf(&b, "📧 *Email:* %s\n", EscapeMarkdown(user.Email))
	fmt.Fprintf(&b, "🆔 *ID:* `%s`\n\n", user.ID)
	b.WriteString(footer)
	return b.String()
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
