package dispatch

import (
	"log/slog"
	"sync"
)

// Registry holds every loaded command, indexed both by canonical name and
// by keyword, in registration order — spec.md §9 endorses a static/runtime
// registry in place of Python's dynamic file-scan plugin loader.
type Registry struct {
	mu        sync.RWMutex
	order     []Command
	byName    map[string]Command
	byKeyword map[string]Command
	log       *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byName:    make(map[string]Command),
		byKeyword: make(map[string]Command),
		log:       log,
	}
}

// Register adds cmd, overwriting any earlier command that claimed the same
// keyword (last registration wins) and logging the conflict — this is the
// same override precedent the config's [Plugin_Overrides] table formalizes
// for a specific name (e.g. wx_international replacing wx).
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[cmd.Name()]; exists {
		r.log.Warn("command re-registered, replacing previous instance", "name", cmd.Name())
		r.replaceInOrderLocked(cmd)
	} else {
		r.order = append(r.order, cmd)
	}
	r.byName[cmd.Name()] = cmd

	for _, kw := range cmd.Keywords() {
		if prev, exists := r.byKeyword[kw]; exists && prev.Name() != cmd.Name() {
			r.log.Warn("keyword conflict, newest registration wins", "keyword", kw, "previous", prev.Name(), "new", cmd.Name())
		}
		r.byKeyword[kw] = cmd
	}
}

func (r *Registry) replaceInOrderLocked(cmd Command) {
	for i, c := range r.order {
		if c.Name() == cmd.Name() {
			r.order[i] = cmd
			return
		}
	}
	r.order = append(r.order, cmd)
}

// Unregister drops a command by name and every keyword it owns — the Go
// equivalent of reload_plugin's clear-then-reregister step.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.byName[name]
	if !ok {
		return
	}
	delete(r.byName, name)
	for _, kw := range cmd.Keywords() {
		if r.byKeyword[kw] != nil && r.byKeyword[kw].Name() == name {
			delete(r.byKeyword, kw)
		}
	}
	for i, c := range r.order {
		if c.Name() == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) ByName(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

func (r *Registry) ByKeyword(keyword string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byKeyword[keyword]
	return cmd, ok
}

// All returns every registered command in registration order.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.order))
	copy(out, r.order)
	return out
}
