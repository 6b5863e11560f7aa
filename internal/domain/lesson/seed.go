package lesson

// SeedLesson - содержимое урока для первоначального заполнения каталога.
type SeedLesson struct {
	Title    string
	Content  string
	Verse    string
	Order    int
	XPReward int
}

// DefaultLessons возвращает стартовый набор из пяти уроков.
func DefaultLessons() []SeedLesson {
	return []SeedLesson{
		{
			Title: "Faith and Trust",
			Content: `Trusting in God requires us to let go of our own understanding and lean on His wisdom. When we face uncertainty, it's natural to want to control every outcome, but true faith means surrendering our plans to God's perfect will.

Proverbs 3:5-6 reminds us that when we trust in the Lord with all our heart and acknowledge Him in all our ways, He will make our paths straight. This doesn't mean life will be easy, but it means we can have confidence that God is guiding us toward His purpose for our lives.

Take a moment today to identify one area where you're struggling to trust God. Pray for the strength to release control and trust in His timing and plan.`,
			Verse:    "Proverbs 3:5-6",
			Order:    1,
			XPReward: 10,
		},
		{
			Title: "Love Your Neighbor",
			Content: `Jesus taught that the second greatest commandment is to love your neighbor as yourself. This command challenges us to extend the same care, compassion, and concern we have for ourselves to those around us.

Loving our neighbor isn't just about being nice—it's about actively seeking the good of others, even when it's inconvenient or uncomfortable. It means seeing the image of God in every person we meet and treating them with dignity and respect.

Today, look for opportunities to show love in practical ways. It might be a kind word, a helping hand, or simply taking time to listen. Every act of love, no matter how small, reflects God's love to the world.`,
			Verse:    "Matthew 22:39",
			Order:    2,
			XPReward: 10,
		},
		{
			Title: "Finding Peace",
			Content: `In a world filled with anxiety and worry, God offers us a peace that surpasses all understanding. This peace isn't the absence of trouble, but the presence of God's comfort and assurance in the midst of life's storms.

Philippians 4:6-7 teaches us that instead of being anxious, we should present our requests to God with thanksgiving. When we do this, God's peace will guard our hearts and minds. This is a peace that the world cannot give and circumstances cannot take away.

When you feel anxious or worried today, pause and pray. Thank God for what He's already done, and trust Him with what's to come. His peace is available to you right now.`,
			Verse:    "Philippians 4:6-7",
			Order:    3,
			XPReward: 10,
		},
		{
			Title: "Strength in Weakness",
			Content: `God's power is made perfect in our weakness. This truth turns our understanding of strength upside down. Instead of hiding our weaknesses, we can boast in them because they become opportunities for God's grace to shine through.

When Paul asked God to remove his "thorn in the flesh," God responded that His grace was sufficient. This teaches us that our limitations aren't obstacles to God's work—they're invitations for Him to work through us in ways we never could on our own.

Embrace your weaknesses today, not as failures, but as places where God's strength can be most clearly seen. His power is enough for whatever you're facing.`,
			Verse:    "2 Corinthians 12:9",
			Order:    4,
			XPReward: 10,
		},
		{
			Title: "Forgiveness",
			Content: `Forgiveness is one of the most powerful and challenging aspects of the Christian life. Ephesians 4:32 calls us to be kind and compassionate, forgiving one another, just as in Christ God forgave us.

Forgiveness doesn't mean pretending the hurt didn't happen or that it doesn't matter. It means choosing to release the debt, to let go of the right to revenge, and to trust God with justice. When we forgive, we're following the example of Christ, who forgave us while we were still sinners.

Is there someone you need to forgive today? Take the first step, even if it's just in your heart. Forgiveness is a process, but it begins with a decision to let go and let God heal.`,
			Verse:    "Ephesians 4:32",
			Order:    5,
			XPReward: 10,
		},
	}
}
