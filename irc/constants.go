package irc

// IRC Messages, these messages are 1-1 constant to string lookups for ease of
// use when matching lines.
const (
	PRIVMSG = "PRIVMSG"
	NOTICE  = "NOTICE"
	QUIT    = "QUIT"
	JOIN    = "JOIN"
	PART    = "PART"
	KICK    = "KICK"
	NICK    = "NICK"
	MODE    = "MODE"
	TOPIC   = "TOPIC"
	PING    = "PING"
	PONG    = "PONG"
	PASS    = "PASS"
	USER    = "USER"
	AWAY    = "AWAY"
	ERROR   = "ERROR"
)

// Commands clients send that the query stack knows the replies to.
const (
	WHOIS    = "WHOIS"
	WHO      = "WHO"
	WHOWAS   = "WHOWAS"
	NAMES    = "NAMES"
	LIST     = "LIST"
	INVITE   = "INVITE"
	USERHOST = "USERHOST"
	ISON     = "ISON"
	OPER     = "OPER"
	MOTD     = "MOTD"
	LUSERS   = "LUSERS"
	VERSION  = "VERSION"
	STATS    = "STATS"
	LINKS    = "LINKS"
	TIME     = "TIME"
	TRACE    = "TRACE"
	ADMIN    = "ADMIN"
	INFO     = "INFO"
	SERVLIST = "SERVLIST"
	SQUERY   = "SQUERY"
	SUMMON   = "SUMMON"
	USERS    = "USERS"
	SERVICE  = "SERVICE"
	SQUIT    = "SQUIT"
	CONNECT  = "CONNECT"
	KILL     = "KILL"
	REHASH   = "REHASH"
	DIE      = "DIE"
	RESTART  = "RESTART"
	WALLOPS  = "WALLOPS"
	CAP      = "CAP"
)

// Numeric replies used by the state tracker, the query stack and the client
// welcome burst.
const (
	RPL_WELCOME         = "001"
	RPL_YOURHOST        = "002"
	RPL_CREATED         = "003"
	RPL_MYINFO          = "004"
	RPL_ISUPPORT        = "005"
	RPL_UMODEIS         = "221"
	RPL_LUSERCLIENT     = "251"
	RPL_LUSEROP         = "252"
	RPL_LUSERUNKNOWN    = "253"
	RPL_LUSERCHANNELS   = "254"
	RPL_LUSERME         = "255"
	RPL_ADMINME         = "256"
	RPL_ADMINLOC1       = "257"
	RPL_ADMINLOC2       = "258"
	RPL_ADMINEMAIL      = "259"
	RPL_TRYAGAIN        = "263"
	RPL_AWAY            = "301"
	RPL_USERHOST        = "302"
	RPL_ISON            = "303"
	RPL_UNAWAY          = "305"
	RPL_NOWAWAY         = "306"
	RPL_WHOISUSER       = "311"
	RPL_WHOISSERVER     = "312"
	RPL_WHOISOPERATOR   = "313"
	RPL_WHOWASUSER      = "314"
	RPL_ENDOFWHO        = "315"
	RPL_WHOISIDLE       = "317"
	RPL_ENDOFWHOIS      = "318"
	RPL_WHOISCHANNELS   = "319"
	RPL_LISTSTART       = "321"
	RPL_LIST            = "322"
	RPL_LISTEND         = "323"
	RPL_CHANNELMODEIS   = "324"
	RPL_CREATIONTIME    = "329"
	RPL_WHOISACCOUNT    = "330"
	RPL_NOTOPIC         = "331"
	RPL_TOPIC           = "332"
	RPL_TOPICWHOTIME    = "333"
	RPL_WHOISACTUALLY   = "338"
	RPL_INVITING        = "341"
	RPL_INVITELIST      = "346"
	RPL_ENDOFINVITELIST = "347"
	RPL_EXCEPTLIST      = "348"
	RPL_ENDOFEXCEPTLIST = "349"
	RPL_VERSION         = "351"
	RPL_WHOREPLY        = "352"
	RPL_NAMREPLY        = "353"
	RPL_WHOSPCRPL       = "354"
	RPL_LINKS           = "364"
	RPL_ENDOFLINKS      = "365"
	RPL_ENDOFNAMES      = "366"
	RPL_BANLIST         = "367"
	RPL_ENDOFBANLIST    = "368"
	RPL_ENDOFWHOWAS     = "369"
	RPL_INFO            = "371"
	RPL_MOTD            = "372"
	RPL_ENDOFINFO       = "374"
	RPL_MOTDSTART       = "375"
	RPL_ENDOFMOTD       = "376"
	RPL_WHOISHOST       = "378"
	RPL_YOUREOPER       = "381"
	RPL_REHASHING       = "382"
	RPL_TIME            = "391"
	RPL_WHOISSECURE     = "671"

	ERR_NOSUCHNICK       = "401"
	ERR_NOSUCHSERVER     = "402"
	ERR_NOSUCHCHANNEL    = "403"
	ERR_CANNOTSENDTOCHAN = "404"
	ERR_TOOMANYCHANNELS  = "405"
	ERR_WASNOSUCHNICK    = "406"
	ERR_TOOMANYTARGETS   = "407"
	ERR_NOORIGIN         = "409"
	ERR_NORECIPIENT      = "411"
	ERR_NOTEXTTOSEND     = "412"
	ERR_NOTOPLEVEL       = "413"
	ERR_WILDTOPLEVEL     = "414"
	ERR_UNKNOWNCOMMAND   = "421"
	ERR_NOMOTD           = "422"
	ERR_NONICKNAMEGIVEN  = "431"
	ERR_ERRONEUSNICKNAME = "432"
	ERR_NICKNAMEINUSE    = "433"
	ERR_NICKCOLLISION    = "436"
	ERR_UNAVAILRESOURCE  = "437"
	ERR_USERNOTINCHANNEL = "441"
	ERR_NOTONCHANNEL     = "442"
	ERR_USERONCHANNEL    = "443"
	ERR_NOTREGISTERED    = "451"
	ERR_NEEDMOREPARAMS   = "461"
	ERR_ALREADYREGISTRED = "462"
	ERR_NOPERMFORHOST    = "463"
	ERR_PASSWDMISMATCH   = "464"
	ERR_YOUREBANNEDCREEP = "465"
	ERR_KEYSET           = "467"
	ERR_CHANNELISFULL    = "471"
	ERR_UNKNOWNMODE      = "472"
	ERR_INVITEONLYCHAN   = "473"
	ERR_BANNEDFROMCHAN   = "474"
	ERR_BADCHANNELKEY    = "475"
	ERR_BADCHANMASK      = "476"
	ERR_NOCHANMODES      = "477"
	ERR_NOPRIVILEGES     = "481"
	ERR_CHANOPRIVSNEEDED = "482"
	ERR_RESTRICTED       = "484"
	ERR_NOOPERHOST       = "491"
	ERR_UMODEUNKNOWNFLAG = "501"
	ERR_USERSDONTMATCH   = "502"
)

// Numeric replies only the query stack looks at.
const (
	RPL_TRACELINK          = "200"
	RPL_TRACECONNECTING    = "201"
	RPL_TRACEHANDSHAKE     = "202"
	RPL_TRACEUNKNOWN       = "203"
	RPL_TRACEOPERATOR      = "204"
	RPL_TRACEUSER          = "205"
	RPL_TRACESERVER        = "206"
	RPL_TRACENEWTYPE       = "208"
	RPL_TRACECLASS         = "209"
	RPL_STATSLINKINFO      = "211"
	RPL_STATSCOMMANDS      = "212"
	RPL_STATSCLINE         = "213"
	RPL_STATSNLINE         = "214"
	RPL_STATSILINE         = "215"
	RPL_STATSKLINE         = "216"
	RPL_STATSQLINE         = "217"
	RPL_ENDOFSTATS         = "219"
	RPL_SERVLIST           = "234"
	RPL_SERVLISTEND        = "235"
	RPL_STATSLLINE         = "241"
	RPL_STATSUPTIME        = "242"
	RPL_STATSOLINE         = "243"
	RPL_STATSHLINE         = "244"
	RPL_STATSTLINE         = "246"
	RPL_STATSPLINE         = "249"
	RPL_WHOISIP            = "320"
	RPL_UNIQOPIS           = "325"
	RPL_SUMMONING          = "342"
	RPL_YOURESERVICE       = "383"
	RPL_USERSSTART         = "392"
	RPL_USERS              = "393"
	RPL_ENDOFUSERS         = "394"
	RPL_NOUSERS            = "395"
	ERR_TOOMANYMATCHES     = "416"
	ERR_FILEERROR          = "424"
	ERR_NICKTOOFAST        = "438"
	ERR_NOLOGIN            = "444"
	ERR_USERSDISABLED      = "446"
	ERR_FORWARDING         = "470"
	ERR_ILLEGALCHANNELNAME = "479"
	ERR_CANTKILLSERVER     = "483"
)
