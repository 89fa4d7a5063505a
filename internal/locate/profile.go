package locate

import (
	"github.com/roach88/resetaudio/internal/sigscan"
)

// Signature finds one address. When Relative is set the match is the start
// of an instruction sequence and the address is the RIP-relative operand
// resolved with Immediate and Displacement; otherwise the match itself is
// the address (a function entry).
type Signature struct {
	Pattern      sigscan.Pattern `yaml:"pattern"`
	Relative     bool            `yaml:"relative,omitempty"`
	Immediate    int64           `yaml:"immediate,omitempty"`
	Displacement int64           `yaml:"displacement,omitempty"`
}

// Profile holds the signatures for one build of the host executable.
type Profile struct {
	// NotificationVtbl matches the audio enumerator initializer, which loads
	// the notification client dispatch table.
	NotificationVtbl Signature `yaml:"notification_vtbl"`

	// RenderThreadBody matches the audio render thread, which waits on the
	// exit event.
	RenderThreadBody Signature `yaml:"render_thread_body"`

	Construct      Signature `yaml:"construct"`
	Initialize     Signature `yaml:"initialize"`
	Cleanup        Signature `yaml:"cleanup"`
	SetStaticAddr2 Signature `yaml:"set_static_addr2"`
}

// ResetFlagImmediate and ResetFlagDisplacement locate the reset flag relative
// to the original OnDefaultDeviceChanged entry, whose first instruction
// stores to it.
const (
	ResetFlagImmediate    = 7
	ResetFlagDisplacement = 3
)

// DefaultProfile returns the signatures of the supported client build.
//
// When the enumerator signature breaks, look for references to
// IID_IMMDeviceEnumerator (A95664D2-9614-4F35-A746-DE8DB63617E6) and
// CLSID_MMDeviceEnumerator (BCDE0395-E52F-467C-8E3D-C4579291692E).
func DefaultProfile() Profile {
	return Profile{
		NotificationVtbl: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"48 89 5c 24 ?? " + // mov [rsp+08], rbx
				"48 89 74 24 ?? " + // mov [rsp+10], rsi
				"57 " + // push rdi
				"48 83 ec ?? " + // sub rsp, 30
				"48 8b d9 " + // mov rbx, rcx
				"e8 ?? ?? ?? ?? " + // call identity
				"48 8d 05 ?? ?? ?? ?? " + // lea rax, [destructor]
				"48 c7 43 ?? 00 00 00 00 " + // mov [rbx+10], 0
				"48 89 03 " + // mov [rbx], rax
				"48 8d 4b ?? " + // lea rcx, [rbx+10]
				"48 8d 05 ?? ?? ?? ?? " + // lea rax, [vtbl]
				"48 89 43 ??"), // mov [rbx+08], rax
			Relative:     true,
			Immediate:    0x34,
			Displacement: 0x30,
		},
		RenderThreadBody: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"40 56 " + // push rsi
				"41 57 " + // push r15
				"48 81 ec ?? ?? ?? ?? " + // sub rsp, a8
				"48 8b 05 ?? ?? ?? ?? " + // mov rax, [security cookie]
				"48 33 c4 " + // xor rax, rsp
				"48 89 44 24 ?? " + // mov [rsp+44], rax
				"33 d2 " + // xor edx, edx
				"33 c9 " + // xor ecx, ecx
				"40 32 f6 " + // xor sil, sil
				"ff 15 ?? ?? ?? ?? " + // call CoInitializeEx
				"48 8b 05 ?? ?? ?? ??"), // mov rax, [exit event]
			Relative:     true,
			Immediate:    0x2E,
			Displacement: 0x2A,
		},
		Construct: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"48 89 5c 24 ?? 48 89 6c 24 ?? 48 89 74 24 ?? " +
				"57 41 56 41 57 48 83 ec ?? " +
				"41 0f b6 f8 " + // movzx edi, r8b
				"0f b6 f2 " + // movzx esi, dl
				"4c 8b f1"), // mov r14, rcx
		},
		Initialize: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"48 89 5c 24 ?? 55 56 57 41 56 41 57 " +
				"48 8d ac 24 ?? ?? ?? ?? " + // lea rbp, [rsp-4f0]
				"48 81 ec ?? ?? ?? ?? " + // sub rsp, 5f0
				"48 8b 05 ?? ?? ?? ?? 48 33 c4 " + // security cookie
				"48 89 85 ?? ?? ?? ?? " +
				"48 8b 05 ?? ?? ?? ?? " +
				"4d 8b c8 " + // mov r9, r8
				"0f b6 f2"), // movzx esi, dl
		},
		Cleanup: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"48 89 5c 24 ?? 48 89 6c 24 ?? 48 89 74 24 ?? " +
				"57 48 83 ec ?? " +
				"48 8b f1 " + // mov rsi, rcx
				"33 ed " + // xor ebp, ebp
				"48 8b 89 ?? ?? ?? ?? " + // mov rcx, [rcx+288]
				"48 85 c9"), // test rcx, rcx
		},
		SetStaticAddr2: Signature{
			Pattern: sigscan.MustParsePattern("" +
				"48 89 5c 24 ?? 57 48 83 ec ?? " +
				"33 d2 48 8b f9 45 33 c0 " +
				"8d 4a ?? " + // lea ecx, [rdx+30]
				"e8 ?? ?? ?? ?? " + // call alloc
				"48 8b d8 48 85 c0 74 ?? " +
				"48 8d 48 ?? " +
				"ff 15 ?? ?? ?? ??"), // call RtlInitializeCriticalSection
		},
	}
}

// MainAudioClassImmediate and MainAudioClassDisplacement resolve the static
// pointer to the main audio instance, stored just past SetStaticAddr2's
// signature.
const (
	MainAudioClassImmediate    = 0x39
	MainAudioClassDisplacement = 0x35
)
