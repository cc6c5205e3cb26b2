package pdf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"errors"
)

// Standard security handler (ISO 32000-1 §7.6.3), revisions 2 and 3 with
// RC4, plus AESV2 crypt filters for reading. Revision 5/6 (AES-256) files
// are reported as encrypted but cannot be unlocked by this handler.

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

type standardCrypt struct {
	o, u    []byte
	p       int32
	r, v    int
	length  int // key length in bits
	fileID  []byte
	useAES  bool
	fileKey []byte // set after successful authentication
}

func newStandardCrypt(enc dict, fileID []byte) *standardCrypt {
	c := &standardCrypt{r: 2, v: 1, length: 40, fileID: fileID}
	if v, ok := enc.intVal("V"); ok {
		c.v = int(v)
	}
	if r, ok := enc.intVal("R"); ok {
		c.r = int(r)
	}
	if l, ok := enc.intVal("Length"); ok {
		c.length = int(l)
	}
	if p, ok := enc.intVal("P"); ok {
		c.p = int32(p)
	}
	if o, ok := enc.strVal("O"); ok {
		c.o = o
	}
	if u, ok := enc.strVal("U"); ok {
		c.u = u
	}
	if cf, ok := enc["CF"].(dict); ok {
		if std, ok := cf["StdCF"].(dict); ok && std.nameVal("CFM") == "AESV2" {
			c.useAES = true
		}
	}
	return c
}

// supported reports whether this handler can actually derive keys for the
// file's revision.
func (c *standardCrypt) supported() bool { return c.r == 2 || c.r == 3 }

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding[:32-n])
	return padded
}

func (c *standardCrypt) keyLenBytes() int {
	n := c.length / 8
	if n < 5 {
		n = 5
	}
	if n > 16 {
		n = 16
	}
	return n
}

// deriveKey computes the file encryption key for a user password
// (algorithm 2).
func (c *standardCrypt) deriveKey(pwd []byte) []byte {
	data := make([]byte, 0, 32+len(c.o)+4+len(c.fileID))
	data = append(data, padPassword(pwd)...)
	data = append(data, c.o...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(c.p))
	data = append(data, pBuf[:]...)
	data = append(data, c.fileID...)

	sum := md5.Sum(data)
	key := sum[:]
	n := c.keyLenBytes()
	if c.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// userEntry computes the expected /U value for a file key (algorithms 4/5).
func (c *standardCrypt) userEntry(key []byte) []byte {
	if c.r == 2 {
		return rc4Apply(key, passwordPadding)
	}
	h := md5.Sum(append(append([]byte{}, passwordPadding...), c.fileID...))
	val := h[:]
	for i := 0; i < 20; i++ {
		tmp := make([]byte, len(key))
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Apply(tmp, val)
	}
	return val
}

func (c *standardCrypt) checkUserKey(key []byte) bool {
	expect := c.userEntry(key)
	if len(c.u) < 16 || len(expect) < 16 {
		return false
	}
	return bytes.Equal(expect[:16], c.u[:16])
}

// authenticate tries pwd as the user password and, failing that, as the
// owner password (recovering the user password from /O per algorithm 7).
func (c *standardCrypt) authenticate(pwd string) bool {
	if !c.supported() {
		return false
	}
	key := c.deriveKey([]byte(pwd))
	if c.checkUserKey(key) {
		c.fileKey = key
		return true
	}
	userPwd := c.ownerToUser([]byte(pwd))
	key = c.deriveKey(userPwd)
	if c.checkUserKey(key) {
		c.fileKey = key
		return true
	}
	return false
}

// ownerKey derives the RC4 key used to produce the /O entry (algorithm 3).
func (c *standardCrypt) ownerKey(ownerPwd []byte) []byte {
	sum := md5.Sum(padPassword(ownerPwd))
	key := sum[:]
	n := c.keyLenBytes()
	if c.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	return key[:n]
}

// ownerToUser decrypts /O with a candidate owner password, yielding the
// padded user password.
func (c *standardCrypt) ownerToUser(ownerPwd []byte) []byte {
	key := c.ownerKey(ownerPwd)
	val := append([]byte{}, c.o...)
	if c.r == 2 {
		return rc4Apply(key, val)
	}
	for i := 19; i >= 0; i-- {
		tmp := make([]byte, len(key))
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Apply(tmp, val)
	}
	return val
}

// ownerEntry computes /O for the writer (algorithm 3, forward direction).
func (c *standardCrypt) ownerEntry(ownerPwd, userPwd []byte) []byte {
	key := c.ownerKey(ownerPwd)
	val := padPassword(userPwd)
	if c.r == 2 {
		return rc4Apply(key, val)
	}
	for i := 0; i < 20; i++ {
		tmp := make([]byte, len(key))
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Apply(tmp, val)
	}
	return val
}

// objectKey derives the per-object key (algorithm 1).
func (c *standardCrypt) objectKey(num, gen int) []byte {
	data := make([]byte, 0, len(c.fileKey)+9)
	data = append(data, c.fileKey...)
	data = append(data,
		byte(num), byte(num>>8), byte(num>>16),
		byte(gen), byte(gen>>8))
	if c.useAES {
		data = append(data, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(data)
	n := len(c.fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// decrypt transforms object data with the per-object key. RC4 is
// symmetric; the writer reuses this for encryption.
func (c *standardCrypt) decrypt(num, gen int, data []byte) []byte {
	if c.fileKey == nil {
		return data
	}
	key := c.objectKey(num, gen)
	if c.useAES {
		out, err := aesCBCDecrypt(key, data)
		if err != nil {
			return data
		}
		return out
	}
	return rc4Apply(key, data)
}

func rc4Apply(key, data []byte) []byte {
	ciph, err := rc4.NewCipher(key)
	if err != nil {
		return data
	}
	out := make([]byte, len(data))
	ciph.XORKeyStream(out, data)
	return out
}

// aesCBCDecrypt handles AESV2 payloads: a 16-byte IV followed by CBC
// ciphertext with PKCS#7-style padding.
func aesCBCDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	// The padded body is at least one block; an IV with nothing after it
	// is malformed.
	if len(data) < 2*aes.BlockSize || (len(data)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, errors.New("pdf: malformed AES stream")
	}
	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	if n := int(out[len(out)-1]); n >= 1 && n <= aes.BlockSize && n <= len(out) {
		out = out[:len(out)-n]
	}
	return out, nil
}
