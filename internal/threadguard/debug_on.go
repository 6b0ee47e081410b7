//go:build ferron_debug_threadguard

package threadguard

const debugEnabled = true
