package fanout

import (
	"context"
	"strings"
	"time"

	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
)

// Template is a reusable notification body with {{variable}} placeholders in
// its title and content.
type Template struct {
	Title    string
	Content  string
	Type     store.NotificationType
	Priority store.Priority
}

// builtinTemplates covers the recurring municipal workflows. Callers may
// register more at startup.
var builtinTemplates = map[string]Template{
	"session_convocation": {
		Title:    "Convocatoria: {{session}}",
		Content:  "Se convoca a la sesión {{session}} el {{date}} en {{location}}.",
		Type:     store.TypeAnnouncement,
		Priority: store.PriorityHigh,
	},
	"document_due": {
		Title:    "Documento pendiente: {{title}}",
		Content:  "El documento {{title}} vence el {{due}}.",
		Type:     store.TypeReminder,
		Priority: store.PriorityNormal,
	},
	"system_maintenance": {
		Title:    "Mantenimiento programado",
		Content:  "El sistema no estará disponible el {{date}} de {{from}} a {{to}}.",
		Type:     store.TypeAlert,
		Priority: store.PriorityUrgent,
	},
}

// RegisterTemplate adds or replaces a named template. Not safe for
// concurrent use with CreateFromTemplate; call during startup wiring.
func (s *Service) RegisterTemplate(name string, tmpl Template) {
	if s.templates == nil {
		s.templates = make(map[string]Template)
	}
	s.templates[name] = tmpl
}

func (s *Service) lookupTemplate(name string) (Template, bool) {
	if tmpl, ok := s.templates[name]; ok {
		return tmpl, true
	}
	tmpl, ok := builtinTemplates[name]
	return tmpl, ok
}

func renderTemplate(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

// CreateFromTemplate instantiates a named template with vars and fans it out
// to the given audience.
func (s *Service) CreateFromTemplate(ctx context.Context, name string, vars map[string]string, audience recipients.Spec, createdBy string) (*Result, error) {
	tmpl, ok := s.lookupTemplate(name)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fanout", "create_from_template",
			"no template named "+name, nil)
	}
	return s.Create(ctx, Payload{
		Title:     renderTemplate(tmpl.Title, vars),
		Content:   renderTemplate(tmpl.Content, vars),
		Type:      tmpl.Type,
		Priority:  tmpl.Priority,
		CreatedBy: createdBy,
		Audience:  audience,
		Metadata:  map[string]string{"template": name},
	})
}

// CreateSystemAnnouncement broadcasts to every active user.
func (s *Service) CreateSystemAnnouncement(ctx context.Context, createdBy, title, content string, priority store.Priority) (*Result, error) {
	return s.Create(ctx, Payload{
		Title:     title,
		Content:   content,
		Type:      store.TypeAnnouncement,
		Priority:  priority,
		CreatedBy: createdBy,
		Audience:  recipients.Spec{Type: recipients.SpecAll},
	})
}

// CreateReminder targets specific users, optionally deferring dispatch until
// remindAt.
func (s *Service) CreateReminder(ctx context.Context, createdBy, title, content string, userIDs []string, remindAt *time.Time) (*Result, error) {
	return s.Create(ctx, Payload{
		Title:        title,
		Content:      content,
		Type:         store.TypeReminder,
		Priority:     store.PriorityNormal,
		CreatedBy:    createdBy,
		Audience:     recipients.Spec{Type: recipients.SpecSpecific, UserIDs: userIDs},
		ScheduledFor: remindAt,
	})
}
