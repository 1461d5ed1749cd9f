package scanner

import "strings"

type wordSet map[string]struct{}

func newWordSet(lists ...string) wordSet {
	set := make(wordSet)
	for _, list := range lists {
		for _, w := range strings.Fields(list) {
			set[w] = struct{}{}
		}
	}
	return set
}

func (w wordSet) has(word string) bool {
	_, ok := w[word]
	return ok
}

const reservedWords = `
accept access active-class add address advancing after align all allocate alphabet alphabetic
alphabetic-lower alphabetic-upper alphanumeric alphanumeric-edited also alter alternate and any
anycase are area areas as ascending assign at attribute author auto automatic b-and b-not b-or
b-xor background-color based basis beep before beginning bell binary binary-char binary-double
binary-long binary-short bit blank blink block boolean bottom by byte-length call cancel cd cf ch
character characters class class-id clock-units close cobol code code-set col collating cols
column columns comma commit common communication comp comp-1 comp-2 comp-3 comp-4 comp-5 comp-x
computational computational-1 computational-2 computational-3 computational-4 computational-5
compute condition configuration constant contains content continue control controls converting
copy corr corresponding count crt currency cursor cycle data data-pointer date date-compiled
date-written day day-of-week de debug-contents debug-item debug-line debug-name debug-sub-1
debug-sub-2 debug-sub-3 debugging decimal-point declaratives default delete delimited delimiter
depending descending destination detail disable display divide division down duplicates
dynamic ec egi eject else emi enable end end-accept end-add end-call end-compute end-delete
end-display end-divide end-evaluate end-exec end-if end-invoke end-multiply end-of-page end-perform
end-read end-receive end-return end-rewrite end-search end-start end-string end-subtract
end-unstring end-write ending enter entry environment eo eop equal erase error escape esi evaluate
every exception exception-object exclusive exec exit exhibit extend external factory false fd
file file-control file-id filler final first float-extended float-long float-short footing for
foreground-color format free from full function function-id function-pointer generate get giving
global go goback greater group group-usage heading high-value high-values highlight i-o
i-o-control id identification if in index indexed indicate inherits initial initialize initiate
input input-output inspect installation interface interface-id into invalid invoke is just
justified key keyboard label last leading left length less limit limits linage linage-counter
line line-counter lines linkage local-storage lock low-value low-values lowlight manual memory
merge message method method-id minus mode modules move multiple multiply national
national-edited native negative nested next no not null nulls number numeric numeric-edited
object object-computer object-reference occurs of off omitted on only open optional options or
order organization other output overflow override packed-decimal padding page page-counter
paragraph perform pf ph pic picture plus pointer position positive present previous printing
procedure procedure-pointer procedures proceed program program-id program-pointer property
prototype purge queue quote quotes raise raising random rd read receive record recording records
recursive redefines reel reference references relative release remainder removal renames replace
replacing report reporting reports repository required reserve reset resume retry return
returning reverse-video rewind rewrite rf rh right rollback rounded run same screen sd search
section secure security segment segment-limit select self send sentence separate sequence
sequential set sharing sign signed size sort sort-merge source source-computer sources space
spaces special-names standard standard-1 standard-2 start status stop string sub-queue-1
sub-queue-2 sub-queue-3 subtract sum super suppress symbolic sync synchronized system-default
table tallying tape terminal terminate test text than then through thru time times to top
trailing true type typedef underline unit universal unlock unsigned until up upon usage use
user-default using val-status valid validate validate-status value values varying wait when
with words working-storage write zero zeroes zeros
`

const objectWords = `
as delegate delegate-id end-try enum enum-id finally iterator-id property-id static try
valuetype valuetype-id yielding attach detach
`

const acuWords = `
display-format thread threads handle window control-type destroy modify inquire
`

const procedureWords = `
accept add alter call cancel close compute continue delete display divide else end-if
end-perform end-evaluate end-call end-read end-write end-string end-unstring entry evaluate exit
go goback if initialize inspect invoke merge move multiply open perform read release return
rewrite search set sort start stop string subtract unstring when write
`

const storageWords = `
binary comp comp-1 comp-2 comp-3 comp-4 comp-5 comp-x computational constant depending external
filler global indexed justified occurs packed-decimal pic picture pointer redefines renames sign
sync synchronized times usage value values
`

var (
	cobolKeywords     = newWordSet(reservedWords, objectWords)
	acuCOBOLKeywords  = newWordSet(reservedWords, objectWords, acuWords)
	procedureKeywords = newWordSet(procedureWords)
	storageKeywords   = newWordSet(storageWords)
)

// keywordsFor returns the reserved word set for a language id.
func keywordsFor(languageID string) wordSet {
	if strings.EqualFold(languageID, "acucobol") {
		return acuCOBOLKeywords
	}
	return cobolKeywords
}

// IsKeyword reports whether word is reserved in the given dialect.
func IsKeyword(languageID, word string) bool {
	return keywordsFor(languageID).has(strings.ToLower(word))
}
