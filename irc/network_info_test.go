package irc

import (
	"strings"
	"testing"
)

var (
	_s0 = `me irc.test.net testircd-1.2 acCior abcde`

	_s1 = `me RFC8812 IRCD=gIRCd CASEMAPPING=strict-rfc1459 PREFIX=(qov)~@+ ` +
		`CHANTYPES=#&! CHANMODES=beI,k,l,imnpst CHANLIMIT=#&:20,!:10 NETWORK=TestNet`

	_s2 = `me CHANNELLEN=49 NICKLEN=8 TOPICLEN=489 AWAYLEN=126 KICKLEN=399 ` +
		`MODES=4 MAXTARGETS=6 MAXLIST=beI:49 EXCEPTS=e INVEX=I PENALTY -FOO`

	capsTest0 = NewLine("irc.test.net", RPL_MYINFO, strings.Split(_s0, " ")...)
	capsTest1 = NewLine("irc.test.net", RPL_ISUPPORT,
		append(strings.Split(_s1, " "), "are supported by this server")...)
	capsTest2 = NewLine("irc.test.net", RPL_ISUPPORT,
		append(strings.Split(_s2, " "), "are supported by this server")...)
)

func TestNetworkInfo_Defaults(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()

	if exp, val := "(ov)@+", p.Prefix(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "#&", p.Chantypes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "beI,k,l,imnpsta", p.Chanmodes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := CasemapRFC1459, p.Casemapping(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if len(p.Tokens()) != 0 {
		t.Error("Expected no tokens, got:", p.Tokens())
	}
}

func TestNetworkInfo_Parse(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()

	p.ParseMyInfo(capsTest0)
	p.ParseISupport(capsTest1)
	p.ParseISupport(capsTest2)

	if exp, val := "irc.test.net", p.ServerName(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "testircd-1.2", p.IrcdVersion(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "acCior", p.Usermodes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "abcde", p.LegacyChanmodes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "gIRCd", p.Extra("IRCD"); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "strict-rfc1459", p.Casemapping(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "(qov)~@+", p.Prefix(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "#&!", p.Chantypes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "beI,k,l,imnpst", p.Chanmodes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 10, p.Chanlimit(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 49, p.Channellen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 8, p.Nicklen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 489, p.Topiclen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 126, p.Awaylen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 399, p.Kicklen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 4, p.Modes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 6, p.MaxTargets(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "TestNet", p.Name(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "e", p.Extra("EXCEPTS"); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "true", p.Extra("PENALTY"); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "", p.Extra("FOO"); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "", p.Extra("me"); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
}

func TestNetworkInfo_BadTokensKeepOldValues(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()

	p.ApplyISupport("PREFIX=(ov)@")
	p.ApplyISupport("CHANMODES=b,k")
	p.ApplyISupport("NICKLEN=abc")
	p.ApplyISupport("")
	p.ApplyISupport("=x")

	if exp, val := "(ov)@+", p.Prefix(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "beI,k,l,imnpsta", p.Chanmodes(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := 0, p.Nicklen(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
}

func TestNetworkInfo_Tokens(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()
	p.ParseISupport(capsTest1)
	p.ParseISupport(capsTest2)

	rebuilt := NewNetworkInfo()
	for _, tok := range p.Tokens() {
		rebuilt.ApplyISupport(tok)
	}

	if exp, val := strings.Join(p.Tokens(), " "), strings.Join(rebuilt.Tokens(), " "); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := p.Prefix(), rebuilt.Prefix(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := p.Casemapping(), rebuilt.Casemapping(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := p.Chanlimit(), rebuilt.Chanlimit(); val != exp {
		t.Error("Unexpected:", val, "should be:", exp)
	}
}

func TestNetworkInfo_Clone(t *testing.T) {
	t.Parallel()
	other := "other"
	diff := "different"

	p1 := NewNetworkInfo()
	p1.ApplyISupport("FOO=" + other)
	p2 := p1.Clone()
	p1.ApplyISupport("CHANTYPES=" + other)
	p1.ApplyISupport("FOO=" + diff)

	if p2.Chantypes() == other {
		t.Error("Clones should not share memory.")
	}
	if p2.Extra("FOO") != other {
		t.Error("The token map should be deep copied.")
	}
}

func TestNetworkInfo_IsChannel(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()
	p.ApplyISupport("CHANTYPES=#&~")
	if test := "#channel"; !p.IsChannel(test) {
		t.Error("Expected:", test, "to be a channel.")
	}
	if test := "&channel"; !p.IsChannel(test) {
		t.Error("Expected:", test, "to be a channel.")
	}
	if test := "n#otchannel"; p.IsChannel(test) {
		t.Error("Expected:", test, "to not be a channel.")
	}
	if p.IsChannel("") {
		t.Error("The empty string is not a channel.")
	}
}

func TestNetworkInfo_Casemapping(t *testing.T) {
	t.Parallel()

	ascii := NewNetworkInfo()
	ascii.ApplyISupport("CASEMAPPING=ascii")
	if !ascii.Equal("Foo", "foo") {
		t.Error("Expected Foo and foo to be equal under ascii.")
	}
	if ascii.Equal("{}|", "[]\\") {
		t.Error("Expected {}| and []\\ to differ under ascii.")
	}

	rfc := NewNetworkInfo()
	rfc.ApplyISupport("CASEMAPPING=rfc1459")
	if !rfc.Equal("Foo", "foo") {
		t.Error("Expected Foo and foo to be equal under rfc1459.")
	}
	if !rfc.Equal("{}|", "[]\\") {
		t.Error("Expected {}| and []\\ to be equal under rfc1459.")
	}
	if !rfc.Equal("a^", "A~") {
		t.Error("Expected ^ and ~ to be equal under rfc1459.")
	}

	strict := NewNetworkInfo()
	strict.ApplyISupport("CASEMAPPING=strict-rfc1459")
	if !strict.Equal("{}|", "[]\\") {
		t.Error("Expected {}| and []\\ to be equal under strict-rfc1459.")
	}
	if strict.Equal("a^", "A~") {
		t.Error("Expected ^ and ~ to differ under strict-rfc1459.")
	}

	precis := NewNetworkInfo()
	precis.ApplyISupport("CASEMAPPING=rfc8265")
	if !precis.Equal("Ünïcode", "ünïcode") {
		t.Error("Expected unicode case folding under rfc8265.")
	}

	if c := rfc.Compare("Alpha", "beta"); c != -1 {
		t.Error("Unexpected:", c, "should be:", -1)
	}
}

func TestNetworkInfo_ClassifyChannelMode(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()

	tests := []struct {
		Mode byte
		Exp  ModeClass
	}{
		{'b', ModeList},
		{'k', ModeAlwaysParam},
		{'l', ModeSetParam},
		{'n', ModeBoolean},
		{'o', ModePrefix},
		{'v', ModePrefix},
		{'Z', ModeUnknown},
	}

	for _, test := range tests {
		if got := p.ClassifyChannelMode(test.Mode); got != test.Exp {
			t.Errorf("%c: Expected: %v, got: %v", test.Mode, test.Exp, got)
		}
	}

	if !ModeSetParam.HasParam(true) || ModeSetParam.HasParam(false) {
		t.Error("Set-param modes take an argument only when set.")
	}
	if ModeBoolean.HasParam(true) {
		t.Error("Boolean modes take no argument.")
	}
}

func TestNetworkInfo_Prefixes(t *testing.T) {
	t.Parallel()
	p := NewNetworkInfo()
	p.ApplyISupport("PREFIX=(ov)@+")

	if exp, val := byte('@'), p.PrefixForMode('o'); val != exp {
		t.Errorf("Expected: %c, got: %c", exp, val)
	}
	if exp, val := byte(NoPrefix), p.PrefixForMode('x'); val != exp {
		t.Errorf("Expected: %q, got: %q", exp, val)
	}
	if exp, val := byte('v'), p.ModeForPrefix('+'); val != exp {
		t.Errorf("Expected: %c, got: %c", exp, val)
	}
	if val := p.ModeForPrefix('%'); val != 0 {
		t.Errorf("Expected no mode, got: %c", val)
	}
	if !p.IsPrefix('@') || p.IsPrefix('#') {
		t.Error("IsPrefix disagrees with the prefix table.")
	}

	p.ApplyISupport("PREFIX=")
	if val := p.PrefixForMode('o'); val != NoPrefix {
		t.Errorf("Expected no prefix, got: %c", val)
	}
}
