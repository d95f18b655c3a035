package genome

// Event-type labels recorded to the journal. Each fits the 15-byte
// event-type field with its NUL terminator.
const (
	EventBoot          = "BOOT"
	EventAsk           = "ASK"
	EventTeach         = "TEACH"
	EventNote          = "NOTE"
	EventEvolve        = "EVOLVE"
	EventSync          = "SYNC"
	EventImport        = "IMPORT"
	EventUserFeedback  = "USER_FEEDBACK"
	EventScriptShow    = "SCRIPT_SHOW"
	EventScriptMode    = "SCRIPT_MODE"
	EventScriptTeach   = "SCRIPT_TEACH"
	EventFormulaCreate = "SCRIPT_FML_NEW"
	EventFormulaSave   = "SCRIPT_FML_SAVE"
	EventFormulaDrop   = "SCRIPT_FML_DROP"
	EventScriptEval    = "SCRIPT_EVALUATE"
	EventScriptTick    = "SCRIPT_TICK"
	EventScriptError   = "SCRIPT_ERROR"
	EventScriptCanvas  = "SCRIPT_CANVAS"
	EventScriptSwarm   = "SCRIPT_SWARM"
	// EventSymbolMap is the only event whose payload is not a pure digit
	// string: symbol table rows use the "CCCCCC|DDD" shape.
	EventSymbolMap = "SYMBOL_MAP"
)
