package zrex

// trapByte is written over every byte of a chunk's code buffer that is not
// part of a live relocated prologue or back-jump: INT3, so that stray
// execution (a racing caller that read a stale trampoline address) traps
// instead of running garbage.
const trapByte = 0xCC

// rewriteBonus is the extra translation-map capacity held in reserve beyond
// sizeofRelativeJump items. The back-jump itself appends no translation
// item.
const rewriteBonus = 2

// translationMapCapacity bounds the translation map per spec §3: at most
// one item per instruction consumed from the prologue, plus rewriteBonus.
const translationMapCapacity = sizeofRelativeJump + rewriteBonus

// bonus is slack appended to a chunk's code buffer beyond
// maxCodeSizeWithBackjump, so that region/chunk sizing has room to round to
// a power-of-two-friendly chunk layout without touching the trap-fill logic.
const bonus = 8

// regionHeaderMagic identifies a live zrex trampoline region. Any candidate
// region whose header does not carry this value is treated as foreign
// memory and never scanned for free chunks.
const regionHeaderMagic uint32 = 0x5A524558 // "ZREX"
