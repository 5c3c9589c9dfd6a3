package config

import "time"

// Default phrase lists cover Spanish and English. They are a starting point,
// not a canon: deployments override them in YAML to match their audience.
var (
	defaultStrongPhrases = []string{
		"quiero contratar",
		"quiero agendar",
		"agendar una reunion",
		"agendar una reunión",
		"agendar una llamada",
		"me interesa contratar",
		"quiero una cotizacion",
		"quiero una cotización",
		"quiero un presupuesto",
		"hablemos de mi proyecto",
		"hagamoslo",
		"hagámoslo",
		"i want to hire",
		"i'd like to hire",
		"let's do this",
		"lets do this",
		"schedule a meeting",
		"schedule a call",
		"book a call",
		"get a quote",
		"i want a quote",
	}

	defaultAffirmations = []string{
		"si", "sí", "ok", "okay", "vale", "claro", "dale",
		"perfecto", "genial", "bueno",
		"yes", "yeah", "yep", "sure", "perfect", "of course",
	}

	defaultContextKeywords = []string{
		"agendar", "reunion", "reunión", "llamada", "contratar",
		"cotizacion", "cotización", "presupuesto", "propuesta",
		"schedule", "meeting", "call", "hire", "quote", "proposal",
	}

	defaultNegatives = []string{
		"no", "nop", "nope", "nah",
		"no gracias", "mejor no", "ahora no", "todavia no", "todavía no",
		"not now", "no thanks", "maybe later",
	}

	defaultSkipKeywords = []string{
		"no", "skip", "omitir", "paso", "ninguno", "no tengo", "n/a",
	}
)

// applyDefaults fills zero-valued fields of cfg in place. Called by the
// loader after decoding so hand-constructed configs in tests can also use it.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if len(cfg.Intent.StrongPhrases) == 0 {
		cfg.Intent.StrongPhrases = defaultStrongPhrases
	}
	if len(cfg.Intent.Affirmations) == 0 {
		cfg.Intent.Affirmations = defaultAffirmations
	}
	if len(cfg.Intent.ContextKeywords) == 0 {
		cfg.Intent.ContextKeywords = defaultContextKeywords
	}
	if cfg.Intent.ContextWindow == 0 {
		cfg.Intent.ContextWindow = 6
	}

	if cfg.Capture.Cooldown == 0 {
		cfg.Capture.Cooldown = Duration(5 * time.Minute)
	}
	if len(cfg.Capture.Affirmations) == 0 {
		cfg.Capture.Affirmations = defaultAffirmations
	}
	if len(cfg.Capture.Negatives) == 0 {
		cfg.Capture.Negatives = defaultNegatives
	}
	if len(cfg.Capture.SkipKeywords) == 0 {
		cfg.Capture.SkipKeywords = defaultSkipKeywords
	}
	if cfg.Capture.FuzzyThreshold == 0 {
		// Short yes/no tokens score low on Jaro-Winkler even for one-typo
		// variants ("sii" vs "si" ≈ 0.91), so the default sits below the
		// usual 0.92 convention.
		cfg.Capture.FuzzyThreshold = 0.90
	}

	if cfg.Summary.Temperature == 0 {
		cfg.Summary.Temperature = 0.3
	}
	if cfg.Summary.MaxTokens == 0 {
		cfg.Summary.MaxTokens = 400
	}

	applyPromptDefaults(&cfg.Prompts)

	if cfg.Gate.MaxMessageLen == 0 {
		cfg.Gate.MaxMessageLen = 2000
	}
	if cfg.Gate.RateLimit.Window == 0 {
		cfg.Gate.RateLimit.Window = Duration(time.Minute)
	}
	if cfg.Gate.RateLimit.MaxRequests == 0 {
		cfg.Gate.RateLimit.MaxRequests = 20
	}

	if cfg.Leads.FilePath == "" && cfg.Leads.PostgresDSN == "" {
		cfg.Leads.FilePath = "leads.jsonl"
	}
	if cfg.Leads.EmbeddingDimensions == 0 {
		cfg.Leads.EmbeddingDimensions = 1536
	}
}

func applyPromptDefaults(p *PromptsConfig) {
	def := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}

	def(&p.System, "Eres el asistente de ventas de un desarrollador freelance. "+
		"Responde de forma breve, amable y profesional sobre servicios de desarrollo web y de software.")
	def(&p.ConfirmCapture, "¡Genial! ¿Querés agendar una reunión para hablar de tu proyecto? Solo necesito unos datos. ¿Avanzamos?")
	def(&p.AskName, "Perfecto. ¿Cuál es tu nombre?")
	def(&p.AskEmail, "Gracias. ¿A qué email te puedo contactar?")
	def(&p.AskPhone, "¿Tenés un teléfono de contacto? (podés responder \"no\" para omitirlo)")
	def(&p.AskProject, "Contame brevemente sobre tu proyecto: ¿qué necesitás?")
	def(&p.ConfirmSend, "¡Listo! ¿Confirmás que envíe tus datos para coordinar la reunión? (sí/no)")
	def(&p.Completed, "¡Perfecto! Recibí tus datos y te voy a contactar a la brevedad. ¡Gracias!")
	def(&p.Declined, "Sin problema, seguimos charlando. Avisame si cambiás de idea.")
	def(&p.Ambiguous, "Perdón, no te entendí. ¿Me confirmás con un sí o un no?")
	def(&p.ErrNameTooShort, "Ese nombre parece muy corto. ¿Me lo repetís?")
	def(&p.ErrInvalidEmail, "Ese email no parece válido. ¿Me lo pasás de nuevo?")
	def(&p.ErrProjectTooShort, "Contame un poco más de detalle sobre el proyecto, por favor.")
	def(&p.ErrServiceBusy, "Estoy recibiendo muchas consultas en este momento. Probá de nuevo en unos segundos.")
	def(&p.ErrServiceMisconfigured, "El servicio de chat no está disponible por el momento. Disculpá las molestias.")
	def(&p.ErrServiceGeneric, "Ocurrió un error inesperado. ¿Podés intentarlo de nuevo?")
}
