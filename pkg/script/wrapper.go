package script

import (
	"encoding/json"
	"strings"
)

// Envelope is the structure the evaluate wrapper returns from the page.
type Envelope struct {
	Result         json.RawMessage `json:"result"`
	ConsoleLogs    []ConsoleLine   `json:"console_logs"`
	StorageError   *string         `json:"storage_error"`
	ExecutionError *string         `json:"execution_error"`
}

// ConsoleLine is one captured console.log call.
type ConsoleLine struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// WrapEvaluate embeds a validated IIFE in an async capture shell: it
// snapshots console.log lines, catches execution errors, optionally
// stores a defined result as JSON under storageKey in sessionStorage,
// and returns the Envelope structure. Trailing semicolons are stripped
// from the IIFE so it embeds cleanly inside Promise.resolve(...).
func WrapEvaluate(iife string, storageKey string) string {
	iife = strings.TrimSpace(iife)
	iife = strings.TrimSuffix(iife, ";")
	iife = strings.TrimSpace(iife)

	var b strings.Builder
	b.WriteString("(async () => {\n")
	b.WriteString("  const __consoleLogs = [];\n")
	b.WriteString("  const __originalConsoleLog = console.log;\n")
	b.WriteString("  console.log = (...args) => {\n")
	b.WriteString("    __consoleLogs.push({\n")
	b.WriteString("      timestamp: Date.now(),\n")
	b.WriteString("      message: args.map(a => typeof a === 'object' ? JSON.stringify(a) : String(a)).join(' ')\n")
	b.WriteString("    });\n")
	b.WriteString("    __originalConsoleLog.apply(console, args);\n")
	b.WriteString("  };\n")
	b.WriteString("  let __result;\n")
	b.WriteString("  let __executionError = null;\n")
	b.WriteString("  let __storageError = null;\n")
	b.WriteString("  try {\n")
	b.WriteString("    __result = await Promise.resolve(" + iife + ");\n")
	b.WriteString("  } catch(e) {\n")
	b.WriteString("    __executionError = String(e);\n")
	b.WriteString("  } finally {\n")
	b.WriteString("    console.log = __originalConsoleLog;\n")
	b.WriteString("  }\n")

	if storageKey != "" {
		key, _ := json.Marshal(storageKey)
		b.WriteString("  if (__result !== undefined) {\n")
		b.WriteString("    try {\n")
		b.WriteString("      sessionStorage.setItem(" + string(key) + ", JSON.stringify(__result));\n")
		b.WriteString("    } catch(e) {\n")
		b.WriteString("      __storageError = 'SessionStorage Error: ' + String(e);\n")
		b.WriteString("    }\n")
		b.WriteString("  }\n")
	}

	b.WriteString("  return {\n")
	b.WriteString("    result: __result,\n")
	b.WriteString("    console_logs: __consoleLogs,\n")
	b.WriteString("    storage_error: __storageError,\n")
	b.WriteString("    execution_error: __executionError\n")
	b.WriteString("  };\n")
	b.WriteString("})()")
	return b.String()
}
