package getsafe

import "github.com/w-h-a/companion/memory"

func String(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Float(payload map[string]any, key string) float64 {
	if v, ok := payload[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func Type(payload map[string]any, key string) memory.Type {
	return memory.Type(String(payload, key))
}
