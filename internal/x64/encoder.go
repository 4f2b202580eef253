// encoder.go - x86-64 指令编码器
//
// x86-64 指令编码格式：
// [前缀] [REX] [操作码] [ModR/M] [SIB] [位移] [立即数]
//
// REX 前缀：用于扩展寄存器和操作数大小
// - REX.W: 64 位操作数
// - REX.R: 扩展 ModR/M.reg 字段
// - REX.X: 扩展 SIB.index 字段
// - REX.B: 扩展 ModR/M.r/m 或 SIB.base 字段
//
// 编码器是纯函数：相同的输入总是得到相同的字节。

package x64

import (
	"encoding/binary"
	"math"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

// Encode 按描述符 op 编码一条指令
//
// size 是指令的操作数宽度（决定 0x66 / REX.W），args 依次对应 op.Slots。
// 末尾的 rel 槽位和隐含的累加器槽位可以省略：rel 字段由随后的重定位填充。
func Encode(op *Opcode, size Size, pfx Prefixes, args ...hwloc.Location) ([]byte, error) {
	nslots := 0
	for _, s := range op.Slots {
		if s == SlotNone {
			break
		}
		nslots++
	}
	if len(args) > nslots {
		return nil, errors.Unencodable("%s takes %d operands, got %d", op.Form, nslots, len(args))
	}

	var (
		rexR, rexX, rexB bool
		forceRex         = pfx.ForceRex
		regField         byte
		opReg            byte
		hasModRM         bool
		memBytes         []byte
		rmByte           byte
		tail             []byte
	)

	for i := 0; i < nslots; i++ {
		slot := op.Slots[i]
		if i >= len(args) || args[i] == nil {
			if slot == SlotRel8 || slot == SlotRel32 || slot == SlotAcc {
				continue
			}
			return nil, errors.Unencodable("%s: missing %s operand %d", op.Form, slot, i)
		}
		arg := args[i]

		switch slot {
		case SlotReg:
			r, ok := arg.(hwloc.Register)
			if !ok || !r.ID.Valid() {
				return nil, errors.Unencodable("%s: operand %d must be a register, got %s %s", op.Form, i, arg.Kind(), arg)
			}
			regField = r.ID.LowBits()
			rexR = r.ID.IsExtended()
			if size == SizeByte && r.ID.NeedsRexFor8Bit() {
				forceRex = true
			}

		case SlotRM:
			hasModRM = true
			switch a := arg.(type) {
			case hwloc.Register:
				if op.MemOnly {
					return nil, errors.Unencodable("%s: operand %d must be memory, got register %s", op.Form, i, a)
				}
				if !a.ID.Valid() {
					return nil, errors.Unencodable("%s: invalid register in operand %d", op.Form, i)
				}
				rmByte = a.ID.LowBits()
				rexB = a.ID.IsExtended()
				if op.rmSize(size) == SizeByte && a.ID.NeedsRexFor8Bit() {
					forceRex = true
				}
			case hwloc.Memory:
				b, x, bb, err := encodeMem(a)
				if err != nil {
					return nil, err
				}
				memBytes = b
				rexX, rexB = x, bb
			default:
				return nil, errors.Unencodable("%s: operand %d must be register or memory, got %s %s", op.Form, i, arg.Kind(), arg)
			}

		case SlotOpReg:
			r, ok := arg.(hwloc.Register)
			if !ok || !r.ID.Valid() {
				return nil, errors.Unencodable("%s: operand %d must be a register, got %s %s", op.Form, i, arg.Kind(), arg)
			}
			opReg = r.ID.LowBits()
			rexB = r.ID.IsExtended()
			if size == SizeByte && r.ID.NeedsRexFor8Bit() {
				forceRex = true
			}

		case SlotImm8, SlotImm16, SlotImm32, SlotImm64:
			c, ok := arg.(hwloc.Const)
			if !ok {
				return nil, errors.Unencodable("%s: operand %d must be an immediate, got %s %s", op.Form, i, arg.Kind(), arg)
			}
			b, err := encodeImm(slot, size, c.Value)
			if err != nil {
				return nil, errors.DisplacementOverflow("%s: %s", op.Form, err.Message)
			}
			tail = append(tail, b...)

		case SlotRel8, SlotRel32:
			c, ok := arg.(hwloc.Const)
			if !ok {
				return nil, errors.Unencodable("%s: operand %d must be a displacement, got %s %s", op.Form, i, arg.Kind(), arg)
			}
			if slot == SlotRel8 {
				if !FitsInt8(c.Value) {
					return nil, errors.DisplacementOverflow("%s: displacement %d does not fit rel8", op.Form, c.Value)
				}
				tail = append(tail, byte(int8(c.Value)))
			} else {
				if !FitsInt32(c.Value) {
					return nil, errors.DisplacementOverflow("%s: displacement %d does not fit rel32", op.Form, c.Value)
				}
				tail = binary.LittleEndian.AppendUint32(tail, uint32(int32(c.Value)))
			}

		case SlotAcc:
			if !hwloc.IsReg(arg, hwloc.RAX) {
				return nil, errors.Unencodable("%s: operand %d is the fixed accumulator, got %s", op.Form, i, arg)
			}
		}
	}

	if op.Digit >= 0 {
		regField = byte(op.Digit)
	}

	code := make([]byte, 0, 16)
	code = append(code, pfx.legacy(size)...)

	w := size == SizeQword || pfx.RexW
	if w || rexR || rexX || rexB || forceRex {
		code = append(code, rex(w, rexR, rexX, rexB))
	}

	code = append(code, op.Bytes...)
	if opReg != 0 {
		code[len(code)-1] += opReg
	}

	if hasModRM {
		if memBytes != nil {
			// ModR/M.reg 在 encodeMem 中留空
			memBytes[0] |= (regField & 0x7) << 3
			code = append(code, memBytes...)
		} else {
			code = append(code, modrm(3, regField, rmByte))
		}
	}

	code = append(code, tail...)
	return code, nil
}

// encodeMem 编码内存操作数（ModR/M.reg 留为 0，由调用者填入）
func encodeMem(m hwloc.Memory) (out []byte, rexX, rexB bool, err error) {
	if m.Base != hwloc.NoReg && !m.Base.Valid() {
		return nil, false, false, errors.Unencodable("invalid base register in %s", m)
	}
	if m.Index != hwloc.NoReg {
		if !m.Index.Valid() {
			return nil, false, false, errors.Unencodable("invalid index register in %s", m)
		}
		if m.Index == hwloc.RSP {
			return nil, false, false, errors.Unencodable("rsp cannot be an index register: %s", m)
		}
	}
	scale, ok := scaleBits(m.Scale, m.Index != hwloc.NoReg)
	if !ok {
		return nil, false, false, errors.Unencodable("invalid scale %d in %s", m.Scale, m)
	}
	if !FitsInt32(m.Disp) {
		return nil, false, false, errors.DisplacementOverflow("displacement %d of %s does not fit 32 bits", m.Disp, m)
	}

	index := byte(4) // 4 = 无 index
	if m.Index != hwloc.NoReg {
		index = m.Index.LowBits()
		rexX = m.Index.IsExtended()
	}

	// 无 base: [index*scale + disp32]
	if m.Base == hwloc.NoReg {
		out = append(out, modrm(0, 0, 4), sib(scale, index, 5))
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(m.Disp)))
		return out, rexX, false, nil
	}

	rexB = m.Base.IsExtended()
	base := m.Base.LowBits()

	// rsp/r12 作为 base 必须带 SIB
	needSIB := m.Index != hwloc.NoReg || base == 4

	var mod byte
	switch {
	case m.Disp == 0 && base != 5: // rbp/r13 在 mod=00 时表示 RIP 相对
		mod = 0
	case FitsInt8(m.Disp):
		mod = 1
	default:
		mod = 2
	}

	rm := base
	if needSIB {
		rm = 4
	}
	out = append(out, modrm(mod, 0, rm))
	if needSIB {
		out = append(out, sib(scale, index, base))
	}
	switch mod {
	case 1:
		out = append(out, byte(int8(m.Disp)))
	case 2:
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(m.Disp)))
	}
	return out, rexX, rexB, nil
}

func scaleBits(scale uint8, hasIndex bool) (byte, bool) {
	switch scale {
	case 1:
		return 0, true
	case 2:
		return 1, true
	case 4:
		return 2, true
	case 8:
		return 3, true
	case 0:
		return 0, !hasIndex
	}
	return 0, false
}

// encodeImm 按槽位宽度编码立即数
//
// imm8/imm16/imm32 在与指令宽度相同时也接受无符号表示；
// 比指令宽度窄时按符号扩展解释，必须落在有符号范围内。
// 放不下的立即数与放不下的位移同属 DisplacementOverflow。
func encodeImm(slot Slot, size Size, v int64) ([]byte, *errors.BackendError) {
	switch slot {
	case SlotImm8:
		ok := FitsInt8(v) || (size == SizeByte && v >= 0 && v <= math.MaxUint8)
		if !ok {
			return nil, errors.DisplacementOverflow("immediate %d does not fit imm8", v)
		}
		return []byte{byte(v)}, nil
	case SlotImm16:
		ok := (v >= math.MinInt16 && v <= math.MaxInt16) || (size == SizeWord && v >= 0 && v <= math.MaxUint16)
		if !ok {
			return nil, errors.DisplacementOverflow("immediate %d does not fit imm16", v)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil
	case SlotImm32:
		ok := FitsInt32(v) || (size != SizeQword && v >= 0 && v <= math.MaxUint32)
		if !ok {
			return nil, errors.DisplacementOverflow("immediate %d does not fit imm32", v)
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
	default:
		return binary.LittleEndian.AppendUint64(nil, uint64(v)), nil
	}
}

// FitsInt8 v 能否用 8 位有符号数表示
func FitsInt8(v int64) bool {
	return v >= math.MinInt8 && v <= math.MaxInt8
}

// FitsInt32 v 能否用 32 位有符号数表示
func FitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
