package reply

import (
	"fmt"

	"github.com/solacehq/solace/internal/mood"
	"github.com/solacehq/solace/internal/storage"
)

// intros open the template reply, matched to the detected mood.
var intros = map[mood.Label]string{
	mood.Sad:      "I understand you're going through a difficult time. Let this verse bring you comfort and hope:",
	mood.Happy:    "I'm glad you're feeling joyful! Here's a verse to celebrate this moment:",
	mood.Angry:    "I sense you're feeling frustrated. This wisdom might help bring clarity and peace:",
	mood.Fear:     "I hear the worry in your words. Let this verse offer you strength and courage:",
	mood.Surprise: "I can feel the surprise in your message. Here's some guidance for this moment:",
	mood.Disgust:  "I understand your concern. This verse might offer a different perspective:",
}

const defaultIntro = "Here's a verse that might speak to your heart:"

// explanations close the template reply with a mood-appropriate reading of
// the verse.
var explanations = map[mood.Label]string{
	mood.Sad:      "This verse reminds us that even in our darkest moments, there is comfort and strength available to us. It speaks to the healing power of faith and the promise that we are not alone in our struggles.",
	mood.Happy:    "This verse celebrates the joy and blessings in our lives. It reminds us to be grateful for the good moments and to share our happiness with others.",
	mood.Angry:    "This verse offers wisdom about managing difficult emotions. It reminds us that patience and understanding can help us navigate challenging situations with grace.",
	mood.Fear:     "This verse speaks to courage and trust. It reminds us that we have inner strength and that we can face our fears with faith and determination.",
	mood.Surprise: "This verse offers guidance for unexpected moments. It reminds us that life's surprises can be opportunities for growth and learning.",
	mood.Disgust:  "This verse provides perspective on difficult situations. It reminds us that there are always different ways to view challenges and find meaning in them.",
}

const defaultExplanation = "This verse offers wisdom and guidance for your current situation. It reminds us that there is always hope and meaning to be found."

// Template renders the fixed-form fallback reply. It quotes the verse
// verbatim with its source attribution and never fails, which is what makes
// it a safe floor under the generation backend.
func Template(verse storage.Verse, label mood.Label) string {
	intro, ok := intros[label]
	if !ok {
		intro = defaultIntro
	}
	explanation, ok := explanations[label]
	if !ok {
		explanation = defaultExplanation
	}
	return fmt.Sprintf("%s\n\n\"%s\"\n— %s\n\n%s\n\nHow does this verse speak to your heart today?",
		intro, verse.Text, verse.Source, explanation)
}
