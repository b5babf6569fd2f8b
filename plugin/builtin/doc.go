// Package builtin contains the capability modules shipped with agentrelay:
// shell, echo, calculator, memory, memory_inspect, plugin_metadata and ask.
//
// RegisterDefaults wires all of them into a registry. Modules that need a
// collaborator (memory manager, provider) are skipped when it is missing.
package builtin
